package run

import (
	"strings"

	"secretvet/internal/evals"
	"secretvet/internal/parsing"
	"secretvet/internal/report"
	"secretvet/internal/session"
)

// Challenge verdicts. Anything a challenger returns outside this set is
// folded into insufficient evidence rather than rejected.
const (
	ChallengeConfirmed    = "CONFIRMED"
	ChallengeRefuted      = "REFUTED"
	ChallengeInsufficient = "INSUFFICIENT_EVIDENCE"
)

// ValidChallengeVerdicts is the closed set of challenge outcomes.
var ValidChallengeVerdicts = map[string]bool{
	ChallengeConfirmed:    true,
	ChallengeRefuted:      true,
	ChallengeInsufficient: true,
}

// AgentRunResult is the output of one analysis session. A failed session
// still produces a result, with Error set and Report nil.
type AgentRunResult struct {
	RunID       string         `json:"run_id"`
	Workspace   string         `json:"workspace,omitempty"`
	Report      *report.Report `json:"report,omitempty"`
	RawMarkdown string         `json:"raw_markdown,omitempty"`
	ProgressLog []string       `json:"progress_log,omitempty"`
	Error       string         `json:"error,omitempty"`

	Usage      *session.UsageStats      `json:"usage,omitempty"`
	SkillUsage *session.SkillUsageStats `json:"skill_usage,omitempty"`
	ToolUsage  *session.ToolUsageStats  `json:"tool_usage,omitempty"`

	Eval      *evals.Result    `json:"eval,omitempty"`
	Challenge *ChallengeResult `json:"challenge,omitempty"`
}

// Failed reports whether the analysis session itself broke. A completed
// session whose report failed eval checks is not a failure.
func (r AgentRunResult) Failed() bool { return r.Error != "" }

// WithEval returns a copy of the result annotated with an eval outcome.
// The receiver is not modified.
func (r AgentRunResult) WithEval(e evals.Result) AgentRunResult {
	r.Eval = &e
	return r
}

// WithChallenge returns a copy of the result annotated with a challenge
// outcome. The receiver is not modified.
func (r AgentRunResult) WithChallenge(c ChallengeResult) AgentRunResult {
	r.Challenge = &c
	return r
}

// ChallengeResult is the outcome of an adversarial challenge against one
// analysis report. The challenger re-runs verification independently and
// reports whether the analysis verdict survives scrutiny.
type ChallengeResult struct {
	Verdict                string   `json:"verdict"`
	Reasoning              string   `json:"reasoning,omitempty"`
	EvidenceGaps           []string `json:"evidence_gaps,omitempty"`
	VerificationReproduced *bool    `json:"verification_reproduced,omitempty"`
	VerificationResult     string   `json:"verification_result,omitempty"`
	ContradictingEvidence  []string `json:"contradicting_evidence,omitempty"`

	Usage      *session.UsageStats      `json:"usage,omitempty"`
	SkillUsage *session.SkillUsageStats `json:"skill_usage,omitempty"`
	ToolUsage  *session.ToolUsageStats  `json:"tool_usage,omitempty"`
}

// NormalizeChallengeVerdict maps arbitrary model output onto the closed
// verdict set. Unknown verdicts become INSUFFICIENT_EVIDENCE.
func NormalizeChallengeVerdict(v string) string {
	upper := strings.ToUpper(strings.TrimSpace(v))
	if ValidChallengeVerdicts[upper] {
		return upper
	}
	return ChallengeInsufficient
}

// ParseChallengeResult decodes a challenger response. It never fails: a
// response with no recoverable JSON, or with a verdict outside the valid
// set, degrades to INSUFFICIENT_EVIDENCE with the raw text preserved in
// the reasoning.
func ParseChallengeResult(raw string) ChallengeResult {
	parsed, err := parsing.DecodeJSON[ChallengeResult](raw)
	if err != nil {
		return ChallengeResult{
			Verdict:   ChallengeInsufficient,
			Reasoning: "Failed to parse challenge response: " + truncate(raw, 200),
		}
	}
	cr := *parsed
	cr.Verdict = NormalizeChallengeVerdict(cr.Verdict)
	return cr
}

// JudgeScore is the judge's score for one candidate report.
type JudgeScore struct {
	ReportIndex           int      `json:"report_index"`
	Score                 float64  `json:"score"`
	MethodologyCompliance *float64 `json:"methodology_compliance,omitempty"`
	Rationale             string   `json:"rationale,omitempty"`
}

// JudgeResult is the judge's selection across all candidate reports.
// WinnerIndex -1 means no candidate was acceptable; it is a legal
// terminal outcome, not an error.
type JudgeResult struct {
	WinnerIndex int          `json:"winner_index"`
	Scores      []JudgeScore `json:"scores"`
	Rationale   string       `json:"rationale,omitempty"`
	Verdict     string       `json:"verdict,omitempty"`
	RawResponse string       `json:"raw_response,omitempty"`
	Workspace   string       `json:"workspace,omitempty"`

	Usage *session.UsageStats `json:"usage,omitempty"`
}

// ParseJudgeResult decodes a judge response for the given candidate
// count. An unparseable response degrades to a no-winner result with
// one zero score per candidate; the second return reports whether the
// response actually parsed. Winner consumers bounds-check the index
// themselves, so an out-of-range index is as harmless as -1.
func ParseJudgeResult(raw string, candidates int) (JudgeResult, bool) {
	type payload struct {
		WinnerIndex *int         `json:"winner_index"`
		Scores      []JudgeScore `json:"scores"`
		Rationale   string       `json:"rationale"`
		Verdict     string       `json:"verdict"`
	}
	parsed, err := parsing.DecodeJSON[payload](raw)
	if err == nil && parsed.WinnerIndex != nil {
		return JudgeResult{
			WinnerIndex: *parsed.WinnerIndex,
			Scores:      parsed.Scores,
			Rationale:   parsed.Rationale,
			Verdict:     parsed.Verdict,
			RawResponse: raw,
		}, true
	}
	scores := make([]JudgeScore, candidates)
	for i := range scores {
		scores[i] = JudgeScore{ReportIndex: i}
	}
	return JudgeResult{
		WinnerIndex: -1,
		Scores:      scores,
		RawResponse: raw,
	}, false
}

// Outcome is the aggregate of a full validation run: one result per
// analysis candidate plus the judge's selection.
type Outcome struct {
	OrgRepo         string           `json:"org_repo"`
	AlertID         string           `json:"alert_id"`
	AnalysisResults []AgentRunResult `json:"analysis_results"`
	JudgeResult     JudgeResult      `json:"judge_result"`
}

// Winner returns the judged winner, or false when no candidate won.
func (o *Outcome) Winner() (AgentRunResult, bool) {
	wi := o.JudgeResult.WinnerIndex
	if wi < 0 || wi >= len(o.AnalysisResults) {
		return AgentRunResult{}, false
	}
	return o.AnalysisResults[wi], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
