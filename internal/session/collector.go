package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ProgressFunc receives human-readable progress updates keyed by run id.
type ProgressFunc func(runID, msg string)

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	RunID          string
	StreamLogPath  string
	StreamVerbose  bool
	Progress       ProgressFunc
	ShowUsage      bool
	Skills         []SkillMeta
	DisabledSkills []string
}

// Collector is a pure event sink accumulating assistant text, usage, and
// tool/skill telemetry for one session. It runs on the transport's event
// goroutine while the controller reads from its own, so all state is
// mutex-guarded.
type Collector struct {
	mu sync.Mutex

	runID         string
	streamLogPath string
	streamVerbose bool
	progress      ProgressFunc

	chunks []string
	usage  UsageStats

	toolUsage  *ToolUsageStats
	skillUsage *SkillUsageStats

	skills        []SkillMeta
	disabled      map[string]bool
	pendingSkills map[string]pendingSkill
}

type pendingSkill struct {
	name    string
	started time.Time
}

// NewCollector builds a collector; tool usage is tracked only when
// ShowUsage is set, matching the diagnostics contract.
func NewCollector(opts CollectorOptions) *Collector {
	c := &Collector{
		runID:         opts.RunID,
		streamLogPath: opts.StreamLogPath,
		streamVerbose: opts.StreamVerbose,
		progress:      opts.Progress,
		skills:        opts.Skills,
		disabled:      make(map[string]bool, len(opts.DisabledSkills)),
		pendingSkills: make(map[string]pendingSkill),
		skillUsage:    NewSkillUsageStats(opts.Skills, opts.DisabledSkills),
	}
	for _, name := range opts.DisabledSkills {
		c.disabled[name] = true
	}
	if opts.ShowUsage {
		c.toolUsage = NewToolUsageStats()
	}
	return c
}

// Handle consumes one session event. Safe for concurrent use.
func (c *Collector) Handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case EventAssistantDelta:
		c.chunks = append(c.chunks, ev.Content)
		c.writeStream(ev.Content)
		if c.streamVerbose && c.progress != nil {
			snippet := strings.ReplaceAll(ev.Content, "\n", " ")
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			if snippet != "" {
				c.progress(c.runID, "delta: "+snippet)
			}
		}
	case EventAssistantMessage:
		c.writeStream(ev.Content)
		if c.progress != nil {
			snippet := strings.TrimSpace(strings.ReplaceAll(ev.Content, "\n", " "))
			// Raw markdown reports are persisted elsewhere; skip them here.
			if strings.HasPrefix(snippet, "# ") || strings.HasPrefix(snippet, "| ") {
				return
			}
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			if snippet != "" {
				c.progress(c.runID, "assistant: "+snippet)
			}
		}
	case EventAssistantUsage:
		if ev.Usage != nil {
			c.usage.MergeTurn(*ev.Usage)
		}
	case EventUsageInfo:
		c.usage.UpdateSnapshot(ev.CurrentTokens, ev.TokenLimit, ev.Quota)
		if ev.Usage != nil {
			c.usage.MergeTurn(*ev.Usage)
		}
	case EventToolStart, EventToolComplete:
		c.handleToolEvent(ev)
	case EventSessionError:
		if c.progress != nil {
			msg := ev.Error
			if msg == "" {
				msg = ev.Content
			}
			c.progress(c.runID, "session_error: "+msg)
		}
	}
}

func (c *Collector) handleToolEvent(ev Event) {
	if c.toolUsage != nil && ev.ToolCallID != "" {
		switch ev.Type {
		case EventToolStart:
			c.toolUsage.AddStart(ev.ToolCallID, ev.ToolName)
		case EventToolComplete:
			c.toolUsage.AddComplete(ev.ToolCallID, ev.Success == nil || *ev.Success, ev.Error)
		}
	}

	if ev.ToolName == "skill" || c.pendingHasCall(ev) {
		c.handleSkillEvent(ev)
	}
	if c.streamVerbose && c.progress != nil {
		c.progress(c.runID, string(ev.Type)+": "+ev.ToolName)
	}
}

func (c *Collector) pendingHasCall(ev Event) bool {
	if ev.Type != EventToolComplete {
		return false
	}
	_, ok := c.pendingSkills[ev.ToolCallID]
	return ok
}

func (c *Collector) handleSkillEvent(ev Event) {
	if ev.ToolCallID == "" {
		return
	}
	switch ev.Type {
	case EventToolStart:
		// The skill name is only present on the start event.
		name, _ := ev.Arguments["skill"].(string)
		if name == "" {
			return
		}
		c.pendingSkills[ev.ToolCallID] = pendingSkill{name: name, started: time.Now()}
	case EventToolComplete:
		p, ok := c.pendingSkills[ev.ToolCallID]
		if !ok {
			return
		}
		delete(c.pendingSkills, ev.ToolCallID)

		durationMS := float64(time.Since(p.started)) / float64(time.Millisecond)
		success := ev.Success == nil || *ev.Success

		var phase string
		var required bool
		for _, sk := range c.skills {
			if sk.Name == p.name {
				phase = sk.Phase
				required = sk.Required
				break
			}
		}

		var status SkillLoadStatus
		switch {
		case c.disabled[p.name]:
			status = SkillDisabled
		case success:
			status = SkillLoaded
		case strings.Contains(strings.ToLower(ev.Error), "not found"):
			status = SkillNotFound
		default:
			status = SkillFailed
		}
		c.skillUsage.AddLoadEvent(p.name, status, phase, required, ev.Error, durationMS)
	}
}

// writeStream appends to the stream log. Log write failures are ignored;
// they must not interrupt collection. Caller holds the mutex.
func (c *Collector) writeStream(msg string) {
	if c.streamLogPath == "" || msg == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.streamLogPath), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(c.streamLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(msg)
}

// Text returns the concatenated assistant deltas collected so far.
func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.chunks, "")
}

// Usage returns a copy of the accumulated usage stats.
func (c *Collector) Usage() UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// ToolUsage returns the tool telemetry, or nil when not tracking.
func (c *Collector) ToolUsage() *ToolUsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toolUsage
}

// FinalizeSkillUsage computes derived skill fields and returns the stats.
func (c *Collector) FinalizeSkillUsage() *SkillUsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skillUsage.Finalize()
	return c.skillUsage
}
