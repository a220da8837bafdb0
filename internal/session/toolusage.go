package session

import (
	"sort"
	"time"
)

// ToolCallEvent records one completed tool call.
type ToolCallEvent struct {
	ToolCallID   string  `json:"tool_call_id"`
	ToolName     string  `json:"tool_name"`
	Status       string  `json:"status"`
	StartedAt    string  `json:"started_at,omitempty"`
	CompletedAt  string  `json:"completed_at,omitempty"`
	DurationMS   float64 `json:"duration_ms,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// ToolCallSummary is per-tool call counts.
type ToolCallSummary struct {
	ToolName   string `json:"tool_name"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// ToolUsageStats tracks every tool call made during a session.
// Not safe for concurrent use; the collector serializes access.
type ToolUsageStats struct {
	ToolCalls []ToolCallEvent `json:"tool_calls"`

	pending map[string]pendingCall
	now     func() time.Time
}

type pendingCall struct {
	toolName string
	started  time.Time
}

// NewToolUsageStats returns an empty tracker.
func NewToolUsageStats() *ToolUsageStats {
	return &ToolUsageStats{pending: make(map[string]pendingCall), now: time.Now}
}

// AddStart records the start of a tool call.
func (s *ToolUsageStats) AddStart(toolCallID, toolName string) {
	s.pending[toolCallID] = pendingCall{toolName: toolName, started: s.now()}
}

// AddComplete records completion of a call previously started with
// AddStart. Completions without a matching start are dropped.
func (s *ToolUsageStats) AddComplete(toolCallID string, success bool, errMsg string) {
	p, ok := s.pending[toolCallID]
	if !ok {
		return
	}
	delete(s.pending, toolCallID)

	now := s.now()
	status := "success"
	if !success {
		status = "failure"
	}
	s.ToolCalls = append(s.ToolCalls, ToolCallEvent{
		ToolCallID:   toolCallID,
		ToolName:     p.toolName,
		Status:       status,
		StartedAt:    p.started.UTC().Format(time.RFC3339),
		CompletedAt:  now.UTC().Format(time.RFC3339),
		DurationMS:   float64(now.Sub(p.started)) / float64(time.Millisecond),
		ErrorMessage: errMsg,
	})
}

// TotalCalls returns the number of completed calls.
func (s *ToolUsageStats) TotalCalls() int { return len(s.ToolCalls) }

// SuccessfulCalls returns the number of successful calls.
func (s *ToolUsageStats) SuccessfulCalls() int {
	n := 0
	for _, c := range s.ToolCalls {
		if c.Status == "success" {
			n++
		}
	}
	return n
}

// FailedCalls returns the number of failed calls.
func (s *ToolUsageStats) FailedCalls() int {
	return len(s.ToolCalls) - s.SuccessfulCalls()
}

// SuccessRate returns the success percentage; 100 when no calls were made.
func (s *ToolUsageStats) SuccessRate() float64 {
	if len(s.ToolCalls) == 0 {
		return 100.0
	}
	return float64(s.SuccessfulCalls()) / float64(len(s.ToolCalls)) * 100
}

// CallsByTool aggregates call counts per tool name.
func (s *ToolUsageStats) CallsByTool() map[string]*ToolCallSummary {
	result := make(map[string]*ToolCallSummary)
	for _, call := range s.ToolCalls {
		summary, ok := result[call.ToolName]
		if !ok {
			summary = &ToolCallSummary{ToolName: call.ToolName}
			result[call.ToolName] = summary
		}
		summary.Total++
		if call.Status == "success" {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return result
}

// TopTools returns up to limit tools sorted by call count descending,
// ties broken by name for stable output.
func (s *ToolUsageStats) TopTools(limit int) []ToolCallSummary {
	byTool := s.CallsByTool()
	tools := make([]ToolCallSummary, 0, len(byTool))
	for _, summary := range byTool {
		tools = append(tools, *summary)
	}
	sort.Slice(tools, func(i, j int) bool {
		if tools[i].Total != tools[j].Total {
			return tools[i].Total > tools[j].Total
		}
		return tools[i].ToolName < tools[j].ToolName
	})
	if len(tools) > limit {
		tools = tools[:limit]
	}
	return tools
}
