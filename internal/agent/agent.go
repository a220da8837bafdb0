package agent

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var templateFenceRe = regexp.MustCompile("(?s)```(?:markdown)?\\s*(.*?)```")

// templateMarker precedes the canonical report template inside an agent
// definition body.
const templateMarker = "report template you must use:"

// Definition is one agent persona loaded from a markdown file.
type Definition struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	ArgumentHint string   `yaml:"argument-hint"`
	Tools        []string `yaml:"tools"`
	Model        string   `yaml:"model"`

	// Prompt is the markdown body; ReportTemplate is the first fenced
	// block after the template marker, when present.
	Prompt         string `yaml:"-"`
	ReportTemplate string `yaml:"-"`
}

// LoadDefinition reads an agent definition file.
func LoadDefinition(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent definition: %w", err)
	}
	meta, body := SplitFrontmatter(string(raw))

	def := &Definition{
		Name:           metaString(meta, "name"),
		Description:    metaString(meta, "description"),
		ArgumentHint:   metaString(meta, "argument-hint", "argument_hint"),
		Tools:          metaStrings(meta, "tools"),
		Model:          metaString(meta, "model"),
		Prompt:         body,
		ReportTemplate: extractReportTemplate(body),
	}
	if def.Name == "" {
		return nil, fmt.Errorf("agent definition %s has no name", path)
	}
	return def, nil
}

// extractReportTemplate returns the first fenced block after the
// template marker, or the first fenced block anywhere as a fallback.
func extractReportTemplate(body string) string {
	search := body
	if idx := strings.Index(strings.ToLower(body), templateMarker); idx >= 0 {
		search = body[idx:]
	}
	if m := templateFenceRe.FindStringSubmatch(search); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// LoadReportTemplate reads a standalone report template file.
// Returns "" when the file does not exist.
func LoadReportTemplate(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
