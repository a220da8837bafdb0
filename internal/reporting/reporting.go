// Package reporting persists run artifacts and renders the final
// summary. Persistence failures are logged and discarded: artifacts are
// a convenience, the in-memory outcome is the source of truth.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"secretvet/internal/logging"
	"secretvet/internal/run"
)

// SaveMarkdown writes content to path, creating parent directories.
func SaveMarkdown(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Persist writes all downstream artifacts for one outcome: a raw report
// file per candidate, a final-report copy when a winner exists, and a
// diagnostics record per candidate when diagnostics are enabled.
func Persist(outcome *run.Outcome, alertDir string, showUsage bool) {
	log := logging.New("reporting")
	save := func(path, content string) {
		if err := SaveMarkdown(path, content); err != nil {
			log.Warn("persist artifact failed", "path", path, "error", err)
		}
	}

	for _, res := range outcome.AnalysisResults {
		if res.RawMarkdown != "" {
			save(filepath.Join(alertDir, "report-"+res.RunID+".md"), res.RawMarkdown)
			if res.Workspace != "" {
				save(filepath.Join(res.Workspace, "report.md"), res.RawMarkdown)
			}
		}
		if showUsage && res.Workspace != "" {
			writeDiagnostics(res)
		}
	}

	if winner, ok := outcome.Winner(); ok && winner.RawMarkdown != "" {
		save(filepath.Join(alertDir, "final-report.md"), winner.RawMarkdown)
		if winner.Workspace != "" {
			save(filepath.Join(winner.Workspace, "final-report.md"), winner.RawMarkdown)
		}
	}
}

// writeDiagnostics records usage, skill, and tool telemetry plus the
// eval outcome for one candidate into its workspace.
func writeDiagnostics(res run.AgentRunResult) {
	log := logging.New("reporting")
	diag := map[string]any{
		"run_id":      res.RunID,
		"usage":       res.Usage,
		"skill_usage": res.SkillUsage,
		"tool_usage":  res.ToolUsage,
		"eval":        res.Eval,
	}
	data, err := json.MarshalIndent(diag, "", "  ")
	if err != nil {
		log.Warn("encode diagnostics failed", "run_id", res.RunID, "error", err)
		return
	}
	path := filepath.Join(res.Workspace, "diagnostics.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("write diagnostics failed", "path", path, "error", err)
	}
}

// Summary is the final console summary of a run.
type Summary struct {
	WinnerIndex     int
	Verdict         string
	Confidence      string
	SecretType      string
	KeyFinding      string
	JudgeRationale  string
	FinalReportPath string
	Workspaces      []string
}

// BuildSummary extracts display data from an outcome. Pure function so
// it can be tested without console side effects.
func BuildSummary(outcome *run.Outcome, alertDir string) Summary {
	s := Summary{
		WinnerIndex:    outcome.JudgeResult.WinnerIndex,
		Verdict:        outcome.JudgeResult.Verdict,
		JudgeRationale: outcome.JudgeResult.Rationale,
	}
	for _, res := range outcome.AnalysisResults {
		if res.Workspace != "" {
			s.Workspaces = append(s.Workspaces, res.Workspace)
		}
	}
	winner, ok := outcome.Winner()
	if !ok {
		return s
	}
	s.FinalReportPath = filepath.Join(alertDir, "final-report.md")
	if rep := winner.Report; rep != nil {
		if s.Verdict == "" {
			s.Verdict = rep.Verdict
		}
		if rep.ConfidenceScore != nil {
			s.Confidence = fmt.Sprintf("%.1f/10", *rep.ConfidenceScore)
			if rep.ConfidenceLabel != "" {
				s.Confidence += " (" + rep.ConfidenceLabel + ")"
			}
		}
		s.SecretType = rep.SecretType
		s.KeyFinding = rep.KeyFinding
	}
	return s
}

// Render formats a summary for the console.
func (s Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Validation complete\n")
	if s.WinnerIndex < 0 {
		b.WriteString("  Winner: none (no defensible report)\n")
	} else {
		fmt.Fprintf(&b, "  Winner: report %d\n", s.WinnerIndex)
	}
	writeField := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %s: %s\n", label, value)
		}
	}
	writeField("Verdict", s.Verdict)
	writeField("Confidence", s.Confidence)
	writeField("Secret type", s.SecretType)
	writeField("Key finding", s.KeyFinding)
	writeField("Rationale", s.JudgeRationale)
	writeField("Final report", s.FinalReportPath)
	for _, ws := range s.Workspaces {
		fmt.Fprintf(&b, "  Workspace: %s\n", ws)
	}
	return b.String()
}
