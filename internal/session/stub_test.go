package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStubFactoryStageRouting(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"analysis.md":  "analysis body",
		"challenge.md": "challenge body",
		"judge.md":     "judge body",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	f := NewStubFactory(dir)

	// Prefixes may carry dashes, including stage words, when the
	// repository or alert id does. Only the trailing tokens decide.
	cases := []struct {
		sessionID string
		want      string
	}{
		{"acme_api_42-0-9f8e7d6c", "analysis body"},
		{"acme_api_42-challenge-0", "challenge body"},
		{"acme_api_42-judge", "judge body"},
		{"acme_x-challenge-y_7-0-9f8e7d6c", "analysis body"},
		{"acme_x-challenge-y_7-challenge-2", "challenge body"},
		{"acme_x-judge-y_7-1-abcdef12", "analysis body"},
		{"acme_x-judge-y_7-judge", "judge body"},
	}
	for _, tc := range cases {
		sess, err := f.CreateSession(context.Background(), Config{SessionID: tc.sessionID})
		if err != nil {
			t.Fatalf("CreateSession(%s): %v", tc.sessionID, err)
		}
		got, err := sess.SendAndWait(context.Background(), "go", 0)
		if err != nil {
			t.Fatalf("SendAndWait(%s): %v", tc.sessionID, err)
		}
		if got != tc.want {
			t.Errorf("session %q replayed %q, want %q", tc.sessionID, got, tc.want)
		}
	}
}

func TestStubFactoryMissingFileYieldsEmptyResponse(t *testing.T) {
	f := NewStubFactory(t.TempDir())
	sess, err := f.CreateSession(context.Background(), Config{SessionID: "acme_api_42-judge"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, err := sess.SendAndWait(context.Background(), "go", 0)
	if err != nil {
		t.Fatalf("SendAndWait: %v", err)
	}
	if got != "" {
		t.Errorf("missing file should replay empty response, got %q", got)
	}
}
