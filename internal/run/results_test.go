package run

import (
	"strings"
	"testing"

	"secretvet/internal/evals"
)

func TestParseChallengeResultFencedJSON(t *testing.T) {
	raw := "Here is my assessment.\n```json\n" +
		`{"verdict": "refuted", "reasoning": "token was revoked", ` +
		`"evidence_gaps": ["no rotation check"], "verification_reproduced": false, ` +
		`"contradicting_evidence": ["401 on introspection"]}` + "\n```\n"
	cr := ParseChallengeResult(raw)
	if cr.Verdict != ChallengeRefuted {
		t.Errorf("verdict = %q, want %q", cr.Verdict, ChallengeRefuted)
	}
	if cr.Reasoning != "token was revoked" {
		t.Errorf("reasoning = %q", cr.Reasoning)
	}
	if len(cr.EvidenceGaps) != 1 || cr.EvidenceGaps[0] != "no rotation check" {
		t.Errorf("evidence gaps = %v", cr.EvidenceGaps)
	}
	if cr.VerificationReproduced == nil || *cr.VerificationReproduced {
		t.Errorf("verification_reproduced = %v, want false", cr.VerificationReproduced)
	}
}

func TestParseChallengeResultNoJSON(t *testing.T) {
	cr := ParseChallengeResult("not json at all")
	if cr.Verdict != ChallengeInsufficient {
		t.Errorf("verdict = %q, want insufficient", cr.Verdict)
	}
	if !strings.HasPrefix(cr.Reasoning, "Failed to parse challenge response: not json at all") {
		t.Errorf("reasoning = %q", cr.Reasoning)
	}
}

func TestParseChallengeResultTruncatesRawInReasoning(t *testing.T) {
	raw := strings.Repeat("x", 500)
	cr := ParseChallengeResult(raw)
	want := "Failed to parse challenge response: " + strings.Repeat("x", 200)
	if cr.Reasoning != want {
		t.Errorf("reasoning length = %d, want prefix plus 200 chars", len(cr.Reasoning))
	}
}

func TestParseChallengeResultUnknownVerdict(t *testing.T) {
	cr := ParseChallengeResult(`{"verdict": "MAYBE", "reasoning": "hmm"}`)
	if cr.Verdict != ChallengeInsufficient {
		t.Errorf("verdict = %q, want insufficient", cr.Verdict)
	}
	if cr.Reasoning != "hmm" {
		t.Errorf("reasoning = %q, want preserved", cr.Reasoning)
	}
}

func TestNormalizeChallengeVerdictTotalAndIdempotent(t *testing.T) {
	inputs := []string{
		"CONFIRMED", "confirmed", "  Refuted ", "INSUFFICIENT_EVIDENCE",
		"", "garbage", "REFUTED!", "true_positive",
	}
	for _, in := range inputs {
		out := NormalizeChallengeVerdict(in)
		if !ValidChallengeVerdicts[out] {
			t.Errorf("NormalizeChallengeVerdict(%q) = %q, outside valid set", in, out)
		}
		if again := NormalizeChallengeVerdict(out); again != out {
			t.Errorf("not idempotent: %q -> %q -> %q", in, out, again)
		}
	}
}

func TestParseJudgeResultValid(t *testing.T) {
	raw := "Deliberation done.\n```json\n" +
		`{"winner_index": 1, "scores": [{"report_index": 0, "score": 4.5}, ` +
		`{"report_index": 1, "score": 8.0, "methodology_compliance": 90.0}], ` +
		`"rationale": "report 1 verified directly", "verdict": "TRUE_POSITIVE"}` + "\n```"
	jr, ok := ParseJudgeResult(raw, 2)
	if !ok {
		t.Fatal("expected parse success")
	}
	if jr.WinnerIndex != 1 {
		t.Errorf("winner = %d, want 1", jr.WinnerIndex)
	}
	if len(jr.Scores) != 2 || jr.Scores[1].Score != 8.0 {
		t.Errorf("scores = %+v", jr.Scores)
	}
	if jr.Verdict != "TRUE_POSITIVE" {
		t.Errorf("verdict = %q", jr.Verdict)
	}
	if jr.RawResponse != raw {
		t.Error("raw response not preserved")
	}
}

func TestParseJudgeResultBareObjectAfterProse(t *testing.T) {
	raw := `After reviewing all reports I conclude: {"winner_index": 0, "scores": [{"report_index": 0, "score": 7.0}]}`
	jr, ok := ParseJudgeResult(raw, 1)
	if !ok || jr.WinnerIndex != 0 {
		t.Errorf("ok = %v, winner = %d, want parsed winner 0", ok, jr.WinnerIndex)
	}
}

func TestParseJudgeResultUngrammatical(t *testing.T) {
	jr, ok := ParseJudgeResult("not json at all", 3)
	if ok {
		t.Fatal("expected parse failure")
	}
	if jr.WinnerIndex != -1 {
		t.Errorf("winner = %d, want -1", jr.WinnerIndex)
	}
	if len(jr.Scores) != 3 {
		t.Fatalf("scores = %d, want 3 zero-filled", len(jr.Scores))
	}
	for i, s := range jr.Scores {
		if s.ReportIndex != i || s.Score != 0 {
			t.Errorf("score[%d] = %+v, want zero score at own index", i, s)
		}
	}
}

func TestParseJudgeResultMissingWinnerIndex(t *testing.T) {
	jr, ok := ParseJudgeResult(`{"scores": [], "rationale": "no idea"}`, 2)
	if ok || jr.WinnerIndex != -1 || len(jr.Scores) != 2 {
		t.Errorf("ok = %v, jr = %+v, want -1 fallback with 2 scores", ok, jr)
	}
}

func TestWithEvalCopyOnWrite(t *testing.T) {
	orig := AgentRunResult{RunID: "0"}
	annotated := orig.WithEval(evals.Result{ReportID: "0"})
	if orig.Eval != nil {
		t.Error("receiver was mutated")
	}
	if annotated.Eval == nil || annotated.Eval.ReportID != "0" {
		t.Errorf("annotation missing: %+v", annotated.Eval)
	}
}

func TestWithChallengeCopyOnWrite(t *testing.T) {
	orig := AgentRunResult{RunID: "1"}
	annotated := orig.WithChallenge(ChallengeResult{Verdict: ChallengeConfirmed})
	if orig.Challenge != nil {
		t.Error("receiver was mutated")
	}
	if annotated.Challenge == nil || annotated.Challenge.Verdict != ChallengeConfirmed {
		t.Errorf("annotation missing: %+v", annotated.Challenge)
	}
}

func TestOutcomeWinner(t *testing.T) {
	o := &Outcome{
		AnalysisResults: []AgentRunResult{{RunID: "0"}, {RunID: "1"}},
		JudgeResult:     JudgeResult{WinnerIndex: 1},
	}
	w, ok := o.Winner()
	if !ok || w.RunID != "1" {
		t.Errorf("winner = %+v ok = %v", w, ok)
	}

	for _, wi := range []int{-1, 2, 99} {
		o.JudgeResult.WinnerIndex = wi
		if _, ok := o.Winner(); ok {
			t.Errorf("winner_index %d: expected no winner", wi)
		}
	}
}
