package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"secretvet/internal/evals"
	"secretvet/internal/report"
	"secretvet/internal/run"
	"secretvet/internal/session"
)

func sampleOutcome(t *testing.T, winner int) (*run.Outcome, string) {
	t.Helper()
	alertDir := t.TempDir()
	ws0 := filepath.Join(alertDir, "ws0")
	ws1 := filepath.Join(alertDir, "ws1")
	for _, ws := range []string{ws0, ws1} {
		if err := os.MkdirAll(ws, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	usage := session.UsageStats{InputTokens: 120, OutputTokens: 45}
	score := 8.5
	return &run.Outcome{
		OrgRepo: "acme/api",
		AlertID: "42",
		AnalysisResults: []run.AgentRunResult{
			{
				RunID:       "0",
				Workspace:   ws0,
				RawMarkdown: "report zero",
				Usage:       &usage,
				Eval:        &evals.Result{ReportID: "0"},
			},
			{
				RunID:       "1",
				Workspace:   ws1,
				RawMarkdown: "report one",
				Report: &report.Report{
					Verdict:         "TRUE_POSITIVE",
					ConfidenceScore: &score,
					ConfidenceLabel: "High",
					SecretType:      "github_pat",
					KeyFinding:      "token is live",
				},
			},
		},
		JudgeResult: run.JudgeResult{WinnerIndex: winner, Rationale: "report one verified"},
	}, alertDir
}

func TestPersistWritesArtifacts(t *testing.T) {
	outcome, alertDir := sampleOutcome(t, 1)
	Persist(outcome, alertDir, true)

	mustExist := []string{
		filepath.Join(alertDir, "report-0.md"),
		filepath.Join(alertDir, "report-1.md"),
		filepath.Join(alertDir, "final-report.md"),
		filepath.Join(outcome.AnalysisResults[0].Workspace, "report.md"),
		filepath.Join(outcome.AnalysisResults[1].Workspace, "final-report.md"),
		filepath.Join(outcome.AnalysisResults[0].Workspace, "diagnostics.json"),
	}
	for _, p := range mustExist {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing artifact %s: %v", p, err)
		}
	}

	final, err := os.ReadFile(filepath.Join(alertDir, "final-report.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(final) != "report one" {
		t.Errorf("final report = %q", final)
	}

	diag, err := os.ReadFile(filepath.Join(outcome.AnalysisResults[0].Workspace, "diagnostics.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(diag, &decoded); err != nil {
		t.Fatalf("diagnostics not valid JSON: %v", err)
	}
	if decoded["run_id"] != "0" {
		t.Errorf("diagnostics run_id = %v", decoded["run_id"])
	}
	if decoded["eval"] == nil {
		t.Error("diagnostics missing eval record")
	}
}

func TestPersistNoWinnerSkipsFinalReport(t *testing.T) {
	outcome, alertDir := sampleOutcome(t, -1)
	Persist(outcome, alertDir, false)

	if _, err := os.Stat(filepath.Join(alertDir, "final-report.md")); !os.IsNotExist(err) {
		t.Error("final-report.md written despite winner_index -1")
	}
	if _, err := os.Stat(filepath.Join(alertDir, "report-0.md")); err != nil {
		t.Errorf("per-candidate report missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outcome.AnalysisResults[0].Workspace, "diagnostics.json")); !os.IsNotExist(err) {
		t.Error("diagnostics written without show usage")
	}
}

func TestBuildSummaryWinner(t *testing.T) {
	outcome, alertDir := sampleOutcome(t, 1)
	s := BuildSummary(outcome, alertDir)
	if s.WinnerIndex != 1 {
		t.Errorf("winner = %d", s.WinnerIndex)
	}
	if s.Verdict != "TRUE_POSITIVE" {
		t.Errorf("verdict = %q", s.Verdict)
	}
	if s.Confidence != "8.5/10 (High)" {
		t.Errorf("confidence = %q", s.Confidence)
	}
	if s.FinalReportPath != filepath.Join(alertDir, "final-report.md") {
		t.Errorf("final report path = %q", s.FinalReportPath)
	}
	if len(s.Workspaces) != 2 {
		t.Errorf("workspaces = %v", s.Workspaces)
	}

	text := s.Render()
	for _, want := range []string{"Winner: report 1", "TRUE_POSITIVE", "8.5/10 (High)", "token is live"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered summary missing %q:\n%s", want, text)
		}
	}
}

func TestBuildSummaryNoWinner(t *testing.T) {
	outcome, alertDir := sampleOutcome(t, -1)
	s := BuildSummary(outcome, alertDir)
	if s.FinalReportPath != "" {
		t.Errorf("final report path = %q, want empty", s.FinalReportPath)
	}
	if !strings.Contains(s.Render(), "Winner: none") {
		t.Error("rendered summary missing no-winner line")
	}
}
