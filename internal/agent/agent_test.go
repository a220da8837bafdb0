package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validatorDef = `---
name: secret-validator
description: Validates secret scanning alerts
argument-hint: "<owner/repo> <alert-id>"
tools:
  - bash
  - read
model: claude-sonnet-4.5
---

You are a secret validation analyst.

Report template you must use:

` + "```markdown\n# Secret Validation Report\n\n## Executive Summary\n```" + `

Follow the phases in order.
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSplitFrontmatter(t *testing.T) {
	meta, body := SplitFrontmatter("---\nname: x\nrequired: true\n---\n\nbody here")
	if meta["name"] != "x" {
		t.Errorf("name = %v", meta["name"])
	}
	if meta["required"] != true {
		t.Errorf("required = %v", meta["required"])
	}
	if body != "body here" {
		t.Errorf("body = %q", body)
	}
}

func TestSplitFrontmatter_NoFrontmatter(t *testing.T) {
	meta, body := SplitFrontmatter("just a body")
	if meta != nil {
		t.Errorf("meta = %v, want nil", meta)
	}
	if body != "just a body" {
		t.Errorf("body = %q", body)
	}
}

func TestSplitFrontmatter_Unclosed(t *testing.T) {
	in := "---\nname: x\nno closing delimiter"
	meta, body := SplitFrontmatter(in)
	if meta != nil || body != in {
		t.Errorf("unclosed frontmatter should return input unchanged")
	}
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "validator.agent.md")
	writeFile(t, path, validatorDef)

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("LoadDefinition: %v", err)
	}
	if def.Name != "secret-validator" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Tools) != 2 || def.Tools[0] != "bash" {
		t.Errorf("Tools = %v", def.Tools)
	}
	if def.ArgumentHint != "<owner/repo> <alert-id>" {
		t.Errorf("ArgumentHint = %q", def.ArgumentHint)
	}
	if !strings.HasPrefix(def.ReportTemplate, "# Secret Validation Report") {
		t.Errorf("ReportTemplate = %q", def.ReportTemplate)
	}
	if !strings.Contains(def.Prompt, "secret validation analyst") {
		t.Errorf("Prompt = %q", def.Prompt)
	}
}

func TestLoadDefinition_NoName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anon.agent.md")
	writeFile(t, path, "---\ndescription: nameless\n---\nbody")

	if _, err := LoadDefinition(path); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestExtractReportTemplate_FallbackFirstFence(t *testing.T) {
	body := "No marker here.\n```\nfirst fence\n```\n```\nsecond\n```"
	if got := extractReportTemplate(body); got != "first fence" {
		t.Errorf("template = %q", got)
	}
	if got := extractReportTemplate("no fences"); got != "" {
		t.Errorf("template = %q, want empty", got)
	}
}

func skillTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1-initialization", "repo-setup", "SKILL.md"),
		"---\nname: repo-setup\ndescription: Clone and prepare the repo\nrequired: true\n---\nbody")
	writeFile(t, filepath.Join(dir, "2-verification", "liveness-check", "SKILL.md"),
		"---\nname: liveness-check\ndescription: Test the credential\nsecret-type: github_pat\n---\nbody")
	writeFile(t, filepath.Join(dir, "_templates", "skeleton", "SKILL.md"),
		"---\nname: skeleton\ndescription: internal template\n---\nbody")
	// no frontmatter name: falls back to directory name
	writeFile(t, filepath.Join(dir, "2-verification", "scope-probe", "SKILL.md"),
		"Just guidance, no frontmatter.")
	return dir
}

func TestDiscoverSkills(t *testing.T) {
	dir := skillTree(t)
	skills := DiscoverSkills(dir)

	if len(skills) != 3 {
		t.Fatalf("expected 3 skills (hidden excluded), got %d: %+v", len(skills), skills)
	}
	if skills[0].Name != "repo-setup" || !skills[0].Required || skills[0].Phase != "1-initialization" {
		t.Errorf("first skill = %+v", skills[0])
	}
	if skills[1].Name != "liveness-check" || skills[1].SecretType != "github_pat" {
		t.Errorf("second skill = %+v", skills[1])
	}
	if skills[2].Name != "scope-probe" || skills[2].Phase != "2-verification" {
		t.Errorf("third skill = %+v", skills[2])
	}
}

func TestDiscoverHiddenSkills(t *testing.T) {
	dir := skillTree(t)
	hidden := DiscoverHiddenSkills(dir)
	if len(hidden) != 1 || hidden[0] != "skeleton" {
		t.Errorf("hidden = %v", hidden)
	}
}

func TestBuildSkillManifest(t *testing.T) {
	dir := skillTree(t)
	m := BuildSkillManifest([]string{dir})

	if len(m.Skills) != 3 {
		t.Fatalf("skills = %d", len(m.Skills))
	}
	if len(m.Phases) != 2 || m.Phases[0] != "1-initialization" {
		t.Errorf("phases = %v", m.Phases)
	}
	metas := m.Metas()
	if len(metas) != 3 || !metas[0].Required {
		t.Errorf("metas = %+v", metas)
	}
}

func TestDiscoverSkillDirs_Analysis(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "analysis", "1-initialization", "s", "SKILL.md"), "x")
	writeFile(t, filepath.Join(base, "analysis", "_templates", "s", "SKILL.md"), "x")
	extra := t.TempDir()

	dirs := DiscoverSkillDirs(base, "analysis", []string{extra, "/does/not/exist"})
	if len(dirs) != 2 {
		t.Fatalf("dirs = %v", dirs)
	}
	if filepath.Base(dirs[0]) != "1-initialization" {
		t.Errorf("first dir = %q", dirs[0])
	}
	if dirs[1] != extra {
		t.Errorf("second dir = %q, want %q", dirs[1], extra)
	}
}

func TestDiscoverSkillDirs_FlatChallenger(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "challenger", "refute-evidence", "SKILL.md"), "x")

	dirs := DiscoverSkillDirs(base, "challenger", nil)
	if len(dirs) != 1 || filepath.Base(dirs[0]) != "challenger" {
		t.Errorf("dirs = %v", dirs)
	}

	if got := DiscoverSkillDirs(base, "judge", nil); len(got) != 0 {
		t.Errorf("judge dirs = %v, want none", got)
	}
}

func TestFormatManifestForContext(t *testing.T) {
	m := BuildSkillManifest([]string{skillTree(t)})
	out := FormatManifestForContext(m)

	if !strings.Contains(out, "## Phase 1: Initialization") {
		t.Errorf("missing phase header:\n%s", out)
	}
	if !strings.Contains(out, "`skill(\"repo-setup\")`") {
		t.Errorf("missing skill entry:\n%s", out)
	}
	if !strings.Contains(out, "**REQUIRED**") {
		t.Errorf("missing required marker:\n%s", out)
	}
	if strings.Contains(out, "skeleton") {
		t.Errorf("hidden skill leaked into context:\n%s", out)
	}
}
