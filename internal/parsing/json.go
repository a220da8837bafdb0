// Package parsing holds the tolerant markdown and JSON extraction helpers
// shared by the report model, the challenge parser, and the judge parser.
// Model output is messy; everything here degrades to "not found" instead
// of failing hard.
package parsing

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var anyFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ErrNoJSON reports that no parseable JSON value was found in the text.
var ErrNoJSON = errors.New("no JSON value found")

// ExtractJSON pulls a JSON value out of free-form model output.
// The last fenced code block wins; if no fence parses, a balanced-brace
// scan over the whole text is tried. Returns false when nothing parses.
func ExtractJSON(text string) (json.RawMessage, bool) {
	var candidates []string
	if fenced := lastFencedBlock(text); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if balanced := balancedBraces(text); balanced != "" {
		candidates = append(candidates, balanced)
	}
	for _, cand := range candidates {
		raw := json.RawMessage(cand)
		if json.Valid(raw) {
			return raw, true
		}
	}
	return nil, false
}

// DecodeJSON extracts JSON from text and unmarshals it into T.
func DecodeJSON[T any](text string) (*T, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return nil, ErrNoJSON
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CleanFences strips a surrounding markdown code fence and whitespace.
// Used where the payload is expected to be bare JSON but models wrap it.
func CleanFences(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		// Strip opening fence line
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		// Strip closing fence
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	return s
}

func lastFencedBlock(text string) string {
	matches := anyFenceRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}

// balancedBraces returns the first minimal balanced {...} span in text.
func balancedBraces(text string) string {
	depth := 0
	start := -1
	for i, ch := range text {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
