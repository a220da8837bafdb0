package parsing

import (
	"strings"
	"testing"
)

func TestExtractJSON_FencedBlock(t *testing.T) {
	text := "Here is the result:\n```json\n{\"verdict\": \"VALID\"}\n```\nDone."
	raw, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	if !strings.Contains(string(raw), `"verdict"`) {
		t.Errorf("unexpected extraction: %s", raw)
	}
}

func TestExtractJSON_LastFenceWins(t *testing.T) {
	text := "```json\n{\"first\": 1}\n```\nrevised:\n```json\n{\"second\": 2}\n```"
	raw, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	if !strings.Contains(string(raw), `"second"`) {
		t.Errorf("expected last fenced block, got: %s", raw)
	}
}

func TestExtractJSON_BareObject(t *testing.T) {
	text := `The answer is {"score": 7.5, "label": "high"} as computed.`
	raw, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	if !strings.Contains(string(raw), `"score"`) {
		t.Errorf("unexpected extraction: %s", raw)
	}
}

func TestExtractJSON_FencedGarbageFallsBack(t *testing.T) {
	text := "```json\nnot json at all\n```\nbut inline {\"ok\": true} exists"
	raw, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected fallback to balanced braces")
	}
	if !strings.Contains(string(raw), `"ok"`) {
		t.Errorf("unexpected extraction: %s", raw)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	if _, ok := ExtractJSON("plain prose with no braces"); ok {
		t.Error("expected no JSON in plain prose")
	}
	if _, ok := ExtractJSON("unbalanced { opener only"); ok {
		t.Error("expected no JSON with unbalanced braces")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Verdict string `json:"verdict"`
		Score   float64
	}
	got, err := DecodeJSON[payload]("```json\n{\"verdict\": \"UPHELD\"}\n```")
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Verdict != "UPHELD" {
		t.Errorf("Verdict = %q, want UPHELD", got.Verdict)
	}

	if _, err := DecodeJSON[payload]("no json here"); err != ErrNoJSON {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestCleanFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		got := string(CleanFences([]byte(tc.in)))
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
