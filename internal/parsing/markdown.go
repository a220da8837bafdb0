package parsing

import (
	"regexp"
	"strings"
)

var (
	headingRe  = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
	tableSepRe = regexp.MustCompile(`^\s*\|?\s*:?-{2,}:?\s*(\|\s*:?-{2,}:?\s*)+\|?\s*$`)
	headNormRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Section is one markdown section: a heading and the body up to the next heading.
type Section struct {
	Heading string
	Body    string
}

// NormalizeHeading lowercases a heading and collapses non-alphanumeric
// runs to single spaces, so "## 2. Locations" matches "locations".
func NormalizeHeading(h string) string {
	return strings.TrimSpace(headNormRe.ReplaceAllString(strings.ToLower(h), " "))
}

// ParseSections splits markdown into sections in document order.
// Text before the first heading is not included.
func ParseSections(md string) []Section {
	matches := headingRe.FindAllStringSubmatchIndex(md, -1)
	sections := make([]Section, 0, len(matches))
	for i, m := range matches {
		heading := strings.TrimSpace(md[m[4]:m[5]])
		start := m[1]
		end := len(md)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.Trim(md[start:end], "\n")
		sections = append(sections, Section{Heading: heading, Body: body})
	}
	return sections
}

// ExtractSection returns the body of the first section whose normalized
// heading starts with the normalized target. Numeric prefixes on headings
// are tolerated because normalization strips the punctuation around them.
func ExtractSection(md, heading string) (string, bool) {
	target := NormalizeHeading(heading)
	for _, s := range ParseSections(md) {
		if strings.HasPrefix(NormalizeHeading(s.Heading), target) {
			return strings.TrimSpace(s.Body), true
		}
	}
	return "", false
}

// ParseTable parses a markdown table into rows keyed by header cell.
// Rows whose cell count does not match the header are skipped.
// Returns nil when the input has no valid header/separator pair.
func ParseTable(tableMD string) []map[string]string {
	var lines []string
	for _, ln := range strings.Split(strings.TrimSpace(tableMD), "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) < 2 {
		return nil
	}
	if !tableSepRe.MatchString(lines[1]) {
		return nil
	}
	headers := splitRow(lines[0])
	var rows []map[string]string
	for _, ln := range lines[2:] {
		cells := splitRow(ln)
		if len(cells) != len(headers) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = cells[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// ExtractTableFromSection finds a section by heading and parses the first
// contiguous table-looking block inside it.
func ExtractTableFromSection(md, heading string) []map[string]string {
	section, ok := ExtractSection(md, heading)
	if !ok {
		return nil
	}
	var buf []string
	collecting := false
	for _, ln := range strings.Split(section, "\n") {
		if strings.Contains(ln, "|") {
			buf = append(buf, ln)
			collecting = true
		} else if collecting {
			break
		}
	}
	if len(buf) == 0 {
		return nil
	}
	return ParseTable(strings.Join(buf, "\n"))
}

// ExtractBullets returns the text of "-" and "*" list items in a section.
func ExtractBullets(sectionMD string) []string {
	var bullets []string
	for _, ln := range strings.Split(sectionMD, "\n") {
		s := strings.TrimSpace(ln)
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "*") {
			bullets = append(bullets, strings.TrimSpace(strings.TrimLeft(s, "-*")))
		}
	}
	return bullets
}

func splitRow(ln string) []string {
	cells := strings.Split(strings.Trim(ln, "|"), "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}
