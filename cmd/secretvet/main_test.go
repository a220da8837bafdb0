package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"secretvet/internal/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const agentBody = `---
name: %s
tools: bash, view
---

Investigate the alert inside the workspace.

Report template you must use:

` + "```markdown" + `
## 1. Summary

| Field | Value |
|---|---|
| Verdict | |
` + "```" + `
`

func TestRunCommand_StubAdapter(t *testing.T) {
	dir := t.TempDir()

	validatorPath := filepath.Join(dir, "validator.agent.md")
	judgePath := filepath.Join(dir, "judge.agent.md")
	challengerPath := filepath.Join(dir, "challenger.agent.md")
	writeFile(t, validatorPath, fmt.Sprintf(agentBody, "secret-validator"))
	writeFile(t, judgePath, fmt.Sprintf(agentBody, "judge"))
	writeFile(t, challengerPath, fmt.Sprintf(agentBody, "challenger"))

	stubDir := filepath.Join(dir, "stub")
	writeFile(t, filepath.Join(stubDir, "analysis.md"), strings.Join([]string{
		"## 1. Summary",
		"",
		"| Field | Value |",
		"|---|---|",
		"| Verdict | FALSE_POSITIVE |",
		"| Confidence | 7.0/10 (Medium) |",
	}, "\n"))
	writeFile(t, filepath.Join(stubDir, "challenge.md"),
		"```json\n{\"verdict\": \"CONFIRMED\", \"reasoning\": \"report holds up\"}\n```")
	writeFile(t, filepath.Join(stubDir, "judge.md"),
		"```json\n{\"winner_index\": 0, \"scores\": [{\"report_index\": 0, \"score\": 7.0}, {\"report_index\": 1, \"score\": 6.0}], \"verdict\": \"FALSE_POSITIVE\"}\n```")

	outputDir := filepath.Join(dir, "analysis")
	dbPath := filepath.Join(dir, "history.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, strings.Join([]string{
		"analysis_count: 2",
		"max_continuation_attempts: 0",
		"min_response_length: 0",
		"agent_file: " + validatorPath,
		"judge_agent_file: " + judgePath,
		"challenger_agent_file: " + challengerPath,
		"output_dir: " + outputDir,
		"db_path: " + dbPath,
	}, "\n"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{
		"run", "acme/api", "42",
		"--config", cfgPath,
		"--adapter", "stub",
		"--stub-dir", stubDir,
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v\noutput:\n%s", err, out.String())
	}

	got := out.String()
	if !strings.Contains(got, "Validation complete") {
		t.Errorf("summary missing from output:\n%s", got)
	}
	if !strings.Contains(got, "Winner: report 0") {
		t.Errorf("winner missing from output:\n%s", got)
	}

	finals, err := filepath.Glob(filepath.Join(outputDir, "*", "*", "*", "final-report.md"))
	if err != nil || len(finals) == 0 {
		t.Errorf("final-report.md not written under %s (err=%v)", outputDir, err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open history db: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns("acme/api", 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(runs))
	}
	if runs[0].WinnerIndex != 0 || runs[0].Analyses != 2 {
		t.Errorf("recorded run = %+v", runs[0])
	}
}

func TestBuildFactory_UnknownAdapter(t *testing.T) {
	if _, err := buildFactory("llm", ""); err == nil {
		t.Fatal("expected error for unknown adapter")
	}
}
