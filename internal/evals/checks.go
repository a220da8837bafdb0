package evals

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"secretvet/internal/report"
)

// ValidVerdicts are the verdict values a report may legally carry.
var ValidVerdicts = map[string]bool{
	"TRUE_POSITIVE":  true,
	"FALSE_POSITIVE": true,
	"SUSPICIOUS":     true,
	"INCONCLUSIVE":   true,
}

// RequiredSections are the headings every report must contain,
// checked against the raw markdown.
var RequiredSections = []string{
	"Executive Summary",
	"Locations",
	"Context and Intent",
	"Verification Testing",
	"Documentary Evidence",
	"Evidence Analysis",
	"Confidence Scoring",
	"Risk Assessment",
	"Verdict",
}

var (
	// filePathRe requires an alphabetic lead-in so bare numbers like a
	// confidence score "6.7" do not count as code evidence.
	filePathRe  = regexp.MustCompile("(?:`[^`]*\\.[a-zA-Z]{1,10}`|[a-zA-Z][\\w/\\\\.-]*\\.\\w{2,10})")
	codeBlockRe = regexp.MustCompile("(?s)```.*?```")
)

// CheckFunc is one deterministic rule applied to a parsed report.
type CheckFunc func(*report.Report) Check

// AllChecks is the fixed battery, in reporting order.
var AllChecks = []CheckFunc{
	HasRequiredSections,
	ValidVerdict,
	ValidConfidenceScore,
	ConfidenceLabelMatchesScore,
	MetadataComplete,
	HasKeyFinding,
	HasVerificationTests,
	HasCodeEvidence,
	VerdictConfidenceCoherent,
}

// RunAll applies the full battery to a report.
func RunAll(r *report.Report, reportID string) Result {
	checks := make([]Check, 0, len(AllChecks))
	for _, fn := range AllChecks {
		checks = append(checks, fn(r))
	}
	return Result{ReportID: reportID, Checks: checks}
}

// HasRequiredSections verifies every required heading is present at any
// level, case-insensitively, tolerating a numeric "N. " prefix.
func HasRequiredSections(r *report.Report) Check {
	var missing []string
	for _, section := range RequiredSections {
		pattern := regexp.MustCompile(`(?mi)^#+\s+(?:\d+\.\s+)?` + regexp.QuoteMeta(section))
		if !pattern.MatchString(r.RawMarkdown) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return errCheck("has_required_sections", false,
			"Missing sections: "+strings.Join(missing, ", "))
	}
	return errCheck("has_required_sections", true, "All required sections present")
}

// ValidVerdict verifies the verdict is one of the allowed values.
func ValidVerdict(r *report.Report) Check {
	verdict := strings.ToUpper(strings.TrimSpace(r.Verdict))
	if ValidVerdicts[verdict] {
		return errCheck("valid_verdict", true, "Verdict: "+verdict)
	}
	allowed := make([]string, 0, len(ValidVerdicts))
	for v := range ValidVerdicts {
		allowed = append(allowed, v)
	}
	sort.Strings(allowed)
	return errCheck("valid_verdict", false,
		fmt.Sprintf("Invalid verdict %q; expected one of: %s", r.Verdict, strings.Join(allowed, ", ")))
}

// ValidConfidenceScore verifies the score exists and lies in [0, 10].
func ValidConfidenceScore(r *report.Report) Check {
	if r.ConfidenceScore == nil {
		return errCheck("valid_confidence_score", false, "Confidence score is missing")
	}
	score := *r.ConfidenceScore
	if score >= 0 && score <= 10 {
		return errCheck("valid_confidence_score", true, fmt.Sprintf("Score: %g/10", score))
	}
	return errCheck("valid_confidence_score", false,
		fmt.Sprintf("Score %g outside valid range 0-10", score))
}

// scoreToLabel maps a confidence score to its expected label.
// Boundaries are exclusive on the upper end for lower tiers:
// high >= 7.0, 4.0 <= medium < 7.0, low < 4.0. Scores outside
// [0, 10] map to "".
func scoreToLabel(score float64) string {
	switch {
	case score < 0 || score > 10:
		return ""
	case score >= 7.0:
		return "high"
	case score >= 4.0:
		return "medium"
	default:
		return "low"
	}
}

// ConfidenceLabelMatchesScore verifies the label tier agrees with the score.
func ConfidenceLabelMatchesScore(r *report.Report) Check {
	label := strings.ToLower(strings.TrimSpace(r.ConfidenceLabel))
	if r.ConfidenceScore == nil || label == "" {
		return errCheck("confidence_label_matches_score", false,
			"Score or label missing; cannot validate")
	}
	score := *r.ConfidenceScore
	expected := scoreToLabel(score)
	if expected == "" {
		return errCheck("confidence_label_matches_score", false,
			fmt.Sprintf("Score %g outside valid range", score))
	}
	if label == expected {
		return errCheck("confidence_label_matches_score", true,
			fmt.Sprintf("Label %q matches score %g", label, score))
	}
	return errCheck("confidence_label_matches_score", false,
		fmt.Sprintf("Label %q does not match score %g; expected %q", label, score, expected))
}

// MetadataComplete verifies the key identity fields are populated.
func MetadataComplete(r *report.Report) Check {
	fields := []struct {
		name  string
		value string
	}{
		{"repository", r.Repository},
		{"alert_id", r.AlertID},
		{"secret_type", r.SecretType},
		{"report_date", r.ReportDate},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errCheck("metadata_complete", false,
			"Missing metadata: "+strings.Join(missing, ", "))
	}
	return errCheck("metadata_complete", true, "All metadata fields populated")
}

// HasKeyFinding verifies the Key Finding block exists and is non-empty.
func HasKeyFinding(r *report.Report) Check {
	if strings.TrimSpace(r.KeyFinding) != "" {
		return errCheck("has_key_finding", true, "Key finding present")
	}
	return errCheck("has_key_finding", false, "Key finding is missing or empty")
}

// HasVerificationTests checks for verification testing content.
// Warning severity: not every analysis produces explicit tests.
func HasVerificationTests(r *report.Report) Check {
	if len(r.VerificationTests) > 0 || strings.TrimSpace(r.VerificationTesting) != "" {
		return warnCheck("has_verification_tests", true, "Verification testing content present")
	}
	return warnCheck("has_verification_tests", false, "No verification testing content found")
}

// HasCodeEvidence checks that the report references file paths or code
// snippets. Warning severity: it signals tool usage quality only.
func HasCodeEvidence(r *report.Report) Check {
	if filePathRe.MatchString(r.RawMarkdown) || codeBlockRe.MatchString(r.RawMarkdown) {
		return warnCheck("has_code_evidence", true, "Report contains code evidence")
	}
	return warnCheck("has_code_evidence", false, "No file paths or code snippets found")
}

// VerdictConfidenceCoherent flags the one incoherent cross-field
// combination: INCONCLUSIVE with confidence >= 7. A highly confident
// analysis should reach a definitive conclusion.
func VerdictConfidenceCoherent(r *report.Report) Check {
	verdict := strings.ToUpper(strings.TrimSpace(r.Verdict))
	if verdict != "INCONCLUSIVE" || r.ConfidenceScore == nil {
		return errCheck("verdict_confidence_coherent", true, "Verdict-confidence coherence OK")
	}
	score := *r.ConfidenceScore
	if score >= 7.0 {
		return errCheck("verdict_confidence_coherent", false,
			fmt.Sprintf("INCONCLUSIVE verdict with high confidence (%g/10) is incoherent", score))
	}
	return errCheck("verdict_confidence_coherent", true,
		fmt.Sprintf("INCONCLUSIVE with score %g/10 is coherent", score))
}

func errCheck(name string, passed bool, msg string) Check {
	return Check{Name: name, Passed: passed, Message: msg, Severity: SeverityError}
}

func warnCheck(name string, passed bool, msg string) Check {
	return Check{Name: name, Passed: passed, Message: msg, Severity: SeverityWarning}
}
