package run

import (
	"fmt"
	"path/filepath"
	"strings"
)

// EnsureWithin resolves target to an absolute path and verifies it does
// not escape base. Every workspace and artifact path is routed through
// this guard before any directory is created.
func EnsureWithin(base, target string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base %s: %w", base, err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve target %s: %w", target, err)
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", fmt.Errorf("relativize %s against %s: %w", target, base, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes %s", target, base)
	}
	return absTarget, nil
}
