// Package report models a secret validation report and parses it from the
// markdown an analysis session produces. The parser is tolerant: missing
// sections and malformed tables yield zero values, never errors, so the
// eval battery can grade whatever came back.
package report

import (
	"regexp"
	"strconv"
	"strings"

	"secretvet/internal/logging"
	"secretvet/internal/parsing"
)

var (
	summaryRowRe = regexp.MustCompile(`(?m)\|\s*([^|]+?)\s*\|\s*([^|]+?)\s*\|`)
	confidenceRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*/\s*10\s*\(([^)]+)\)`)
	keyFindingRe = regexp.MustCompile(`>\s*\*\*Key Finding:\*\*\s*(.*)`)
)

// Score is one factor row from the confidence scoring table.
type Score struct {
	Factor    string  `json:"factor"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// Report is the structured form of one validation report.
// Fields are pointers or empty strings when the markdown did not carry them.
type Report struct {
	AlertID         string   `json:"alert_id,omitempty"`
	Repository      string   `json:"repository,omitempty"`
	SecretType      string   `json:"secret_type,omitempty"`
	Verdict         string   `json:"verdict,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	ConfidenceLabel string   `json:"confidence_label,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	Status          string   `json:"status,omitempty"`
	Analyst         string   `json:"analyst,omitempty"`
	ReportDate      string   `json:"report_date,omitempty"`
	KeyFinding      string   `json:"key_finding,omitempty"`

	RawMarkdown string `json:"raw_markdown,omitempty"`

	Locations              string              `json:"locations,omitempty"`
	LocationsTable         []map[string]string `json:"locations_table,omitempty"`
	Context                string              `json:"context,omitempty"`
	VerificationTesting    string              `json:"verification_testing,omitempty"`
	VerificationTests      []map[string]string `json:"verification_tests,omitempty"`
	DocumentaryEvidence    string              `json:"documentary_evidence,omitempty"`
	EvidenceAnalysis       string              `json:"evidence_analysis,omitempty"`
	EvidenceAnalysisTable  []map[string]string `json:"evidence_analysis_table,omitempty"`
	ConfidenceScoring      []Score             `json:"confidence_scoring,omitempty"`
	ConfidenceScoringTable []map[string]string `json:"confidence_scoring_table,omitempty"`
	RiskAssessment         string              `json:"risk_assessment,omitempty"`
	RiskAssessmentTable    []map[string]string `json:"risk_assessment_table,omitempty"`
	VerdictDetails         string              `json:"verdict_details,omitempty"`
}

// ParseMarkdown parses canonical report markdown into a Report.
// Whatever cannot be recovered is left at its zero value.
func ParseMarkdown(md string) *Report {
	log := logging.New("report")
	r := &Report{RawMarkdown: md}

	for _, m := range summaryRowRe.FindAllStringSubmatch(md, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		val := strings.TrimSpace(m[2])
		switch key {
		case "repository":
			r.Repository = val
		case "alert id":
			r.AlertID = val
		case "secret type":
			r.SecretType = val
		case "verdict":
			r.Verdict = val
		case "confidence score":
			if cm := confidenceRe.FindStringSubmatch(val); cm != nil {
				score, _ := strconv.ParseFloat(cm[1], 64)
				r.ConfidenceScore = &score
				r.ConfidenceLabel = cm[2]
			} else {
				r.ConfidenceLabel = val
			}
		case "risk level":
			r.RiskLevel = val
		case "status":
			r.Status = val
		case "analyst":
			r.Analyst = val
		case "report date":
			r.ReportDate = val
		}
	}

	if m := keyFindingRe.FindStringSubmatch(md); m != nil {
		r.KeyFinding = strings.TrimSpace(m[1])
	}

	r.LocationsTable = parsing.ExtractTableFromSection(md, "Locations")
	r.Locations, _ = parsing.ExtractSection(md, "Locations")

	r.Context, _ = parsing.ExtractSection(md, "Context and Intent")

	r.VerificationTests = parsing.ExtractTableFromSection(md, "Verification Testing")
	if r.VerificationTests == nil {
		// some reports use the singular heading
		r.VerificationTests = parsing.ExtractTableFromSection(md, "Verification Test")
	}
	r.VerificationTesting, _ = parsing.ExtractSection(md, "Verification Testing")

	if doc, ok := parsing.ExtractSection(md, "Documentary Evidence"); ok {
		if bullets := parsing.ExtractBullets(doc); len(bullets) > 0 {
			r.DocumentaryEvidence = strings.Join(bullets, "\n")
		} else {
			r.DocumentaryEvidence = doc
		}
	}

	r.EvidenceAnalysisTable = parsing.ExtractTableFromSection(md, "Evidence Analysis")
	r.EvidenceAnalysis, _ = parsing.ExtractSection(md, "Evidence Analysis")

	if cs := parsing.ExtractTableFromSection(md, "Confidence Scoring"); cs != nil {
		r.ConfidenceScoringTable = cs
		scores, err := parseScores(cs)
		if err != nil {
			log.Debug("confidence scoring parse failed", "error", err)
		} else {
			r.ConfidenceScoring = scores
		}
	}

	r.RiskAssessmentTable = parsing.ExtractTableFromSection(md, "Risk Assessment")
	r.RiskAssessment, _ = parsing.ExtractSection(md, "Risk Assessment")

	r.VerdictDetails, _ = parsing.ExtractSection(md, "Verdict")

	return r
}

// parseScores converts raw table rows into Scores, clamping each score to
// [0, 10]. A non-numeric score cell fails the whole table; the raw table
// is still retained by the caller.
func parseScores(rows []map[string]string) ([]Score, error) {
	scores := make([]Score, 0, len(rows))
	for _, row := range rows {
		raw := cell(row, "Score", "score")
		var val float64
		if raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, err
			}
			val = parsed
		}
		scores = append(scores, Score{
			Factor:    cell(row, "Factor", "factor"),
			Score:     clampScore(val),
			Rationale: cell(row, "Rationale", "rationale"),
		})
	}
	return scores, nil
}

func clampScore(s float64) float64 {
	return max(0, min(10, s))
}

func cell(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			return v
		}
	}
	return ""
}
