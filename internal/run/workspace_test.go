package run

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureWithinAccepts(t *testing.T) {
	base := t.TempDir()
	got, err := EnsureWithin(base, filepath.Join(base, "acme_corp_api", "42", "abc123"))
	if err != nil {
		t.Fatalf("EnsureWithin: %v", err)
	}
	if !strings.HasPrefix(got, base) {
		t.Errorf("resolved path %q not under base %q", got, base)
	}
}

func TestEnsureWithinBaseItself(t *testing.T) {
	base := t.TempDir()
	if _, err := EnsureWithin(base, base); err != nil {
		t.Errorf("base itself rejected: %v", err)
	}
}

func TestEnsureWithinRejectsEscape(t *testing.T) {
	base := t.TempDir()
	escapes := []string{
		filepath.Join(base, ".."),
		filepath.Join(base, "..", "elsewhere"),
		filepath.Join(base, "sub", "..", "..", "elsewhere"),
		"/etc/passwd",
	}
	for _, p := range escapes {
		if _, err := EnsureWithin(base, p); err == nil {
			t.Errorf("EnsureWithin(%q, %q) accepted an escaping path", base, p)
		}
	}
}
