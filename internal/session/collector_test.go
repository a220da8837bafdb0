package session

import (
	"math"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestCollector_TextAndUsage(t *testing.T) {
	c := NewCollector(CollectorOptions{RunID: "a0"})

	c.Handle(Event{Type: EventAssistantDelta, Content: "hello "})
	c.Handle(Event{Type: EventAssistantDelta, Content: "world"})
	c.Handle(Event{Type: EventAssistantUsage, Usage: &TurnUsage{InputTokens: 100, OutputTokens: 50, Cost: 0.02, Duration: 1.5}})
	c.Handle(Event{Type: EventAssistantUsage, Usage: &TurnUsage{InputTokens: 10, OutputTokens: 5}})

	if got := c.Text(); got != "hello world" {
		t.Errorf("Text = %q", got)
	}
	usage := c.Usage()
	if usage.InputTokens != 110 || usage.OutputTokens != 55 {
		t.Errorf("usage tokens = %v/%v", usage.InputTokens, usage.OutputTokens)
	}
	if usage.TotalTokens() != 165 {
		t.Errorf("TotalTokens = %v", usage.TotalTokens())
	}
}

func TestCollector_QuotaSnapshots(t *testing.T) {
	c := NewCollector(CollectorOptions{RunID: "a0"})

	first := map[string]QuotaSnapshot{"premium": {UsedRequests: 10}}
	second := map[string]QuotaSnapshot{"premium": {UsedRequests: 14}}
	c.Handle(Event{Type: EventUsageInfo, Quota: first})
	c.Handle(Event{Type: EventUsageInfo, Quota: second})

	usage := c.Usage()
	consumed := usage.RequestsConsumed()
	if consumed["premium"] != 4 {
		t.Errorf("requests consumed = %v, want 4", consumed["premium"])
	}
}

func TestCollector_ToolUsageOnlyWhenShown(t *testing.T) {
	c := NewCollector(CollectorOptions{RunID: "a0"})
	if c.ToolUsage() != nil {
		t.Error("tool usage must be nil without ShowUsage")
	}

	c = NewCollector(CollectorOptions{RunID: "a0", ShowUsage: true})
	c.Handle(Event{Type: EventToolStart, ToolCallID: "t1", ToolName: "grep"})
	c.Handle(Event{Type: EventToolComplete, ToolCallID: "t1", Success: boolPtr(true)})
	c.Handle(Event{Type: EventToolStart, ToolCallID: "t2", ToolName: "bash"})
	c.Handle(Event{Type: EventToolComplete, ToolCallID: "t2", Success: boolPtr(false), Error: "exit 1"})
	// completion without a start is dropped
	c.Handle(Event{Type: EventToolComplete, ToolCallID: "t9", Success: boolPtr(true)})

	tu := c.ToolUsage()
	if tu.TotalCalls() != 2 {
		t.Fatalf("TotalCalls = %d, want 2", tu.TotalCalls())
	}
	if tu.SuccessfulCalls() != 1 || tu.FailedCalls() != 1 {
		t.Errorf("success/failed = %d/%d", tu.SuccessfulCalls(), tu.FailedCalls())
	}
	if tu.SuccessRate() != 50 {
		t.Errorf("SuccessRate = %v", tu.SuccessRate())
	}
}

func TestCollector_SkillTracking(t *testing.T) {
	skills := []SkillMeta{
		{Name: "verify-liveness", Phase: "verification", Required: true},
		{Name: "git-forensics", Phase: "evidence"},
	}
	c := NewCollector(CollectorOptions{RunID: "a0", Skills: skills})

	c.Handle(Event{
		Type: EventToolStart, ToolCallID: "s1", ToolName: "skill",
		Arguments: map[string]any{"skill": "verify-liveness"},
	})
	c.Handle(Event{Type: EventToolComplete, ToolCallID: "s1", Success: boolPtr(true)})

	c.Handle(Event{
		Type: EventToolStart, ToolCallID: "s2", ToolName: "skill",
		Arguments: map[string]any{"skill": "git-forensics"},
	})
	c.Handle(Event{Type: EventToolComplete, ToolCallID: "s2", Success: boolPtr(false), Error: "skill not found"})

	su := c.FinalizeSkillUsage()
	if len(su.LoadedSkills) != 1 || su.LoadedSkills[0] != "verify-liveness" {
		t.Errorf("LoadedSkills = %v", su.LoadedSkills)
	}
	if len(su.FailedSkills) != 1 || su.FailedSkills[0] != "git-forensics" {
		t.Errorf("FailedSkills = %v", su.FailedSkills)
	}
	if su.ComplianceScore() != 100 {
		t.Errorf("ComplianceScore = %v, want 100 (required skill loaded)", su.ComplianceScore())
	}
	if len(su.SkippedRequired) != 0 {
		t.Errorf("SkippedRequired = %v", su.SkippedRequired)
	}
	if su.LoadEvents[1].Status != SkillNotFound {
		t.Errorf("status = %s, want not_found", su.LoadEvents[1].Status)
	}
	byPhase := su.LoadedByPhase()
	if len(byPhase["verification"]) != 1 {
		t.Errorf("LoadedByPhase = %v", byPhase)
	}
}

func TestSkillUsage_SkippedRequired(t *testing.T) {
	su := NewSkillUsageStats([]SkillMeta{
		{Name: "a", Required: true},
		{Name: "b", Required: true},
		{Name: "c"},
	}, nil)
	su.AddLoadEvent("a", SkillLoaded, "", true, "", 0)
	su.Finalize()

	if len(su.SkippedRequired) != 1 || su.SkippedRequired[0] != "b" {
		t.Errorf("SkippedRequired = %v", su.SkippedRequired)
	}
	if su.ComplianceScore() != 50 {
		t.Errorf("ComplianceScore = %v, want 50", su.ComplianceScore())
	}
}

func TestSkillUsage_NoRequirements(t *testing.T) {
	su := NewSkillUsageStats(nil, nil)
	if su.ComplianceScore() != 100 {
		t.Errorf("ComplianceScore = %v, want 100 with no requirements", su.ComplianceScore())
	}
}

func TestToolUsage_TopTools(t *testing.T) {
	tu := NewToolUsageStats()
	for i, name := range []string{"grep", "grep", "bash", "read", "grep", "bash"} {
		id := string(rune('a' + i))
		tu.AddStart(id, name)
		tu.AddComplete(id, true, "")
	}
	top := tu.TopTools(2)
	if len(top) != 2 || top[0].ToolName != "grep" || top[0].Total != 3 {
		t.Errorf("TopTools = %+v", top)
	}
	if top[1].ToolName != "bash" || top[1].Total != 2 {
		t.Errorf("TopTools = %+v", top)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{45, "45s"},
		{83, "1m 23s"},
		{7500, "2h 5m"},
		{-3, "0s"},
		{0, "0s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	u1 := UsageStats{InputTokens: 10, Cost: 0.1, QuotaStart: map[string]QuotaSnapshot{"p": {UsedRequests: 1}}}
	u2 := UsageStats{InputTokens: 20, Cost: 0.2, QuotaEnd: map[string]QuotaSnapshot{"p": {UsedRequests: 5}}}

	agg := Aggregate([]UsageStats{u1, u2})
	if agg.InputTokens != 30 {
		t.Errorf("InputTokens = %v", agg.InputTokens)
	}
	if math.Abs(agg.Cost-0.3) > 1e-9 {
		t.Errorf("Cost = %v", agg.Cost)
	}
	if agg.QuotaStart["p"].UsedRequests != 1 || agg.QuotaEnd["p"].UsedRequests != 5 {
		t.Errorf("quota snapshots not preserved: %+v", agg)
	}
}
