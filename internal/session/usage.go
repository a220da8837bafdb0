package session

import "fmt"

// QuotaSnapshot is one quota bucket's state as reported by the transport.
type QuotaSnapshot struct {
	UsedRequests     float64 `json:"used_requests"`
	PercentRemaining float64 `json:"percent_remaining,omitempty"`
}

// TurnUsage is the per-turn token accounting carried on a usage event.
// Duration is in seconds.
type TurnUsage struct {
	InputTokens      float64 `json:"input_tokens"`
	OutputTokens     float64 `json:"output_tokens"`
	CacheReadTokens  float64 `json:"cache_read_tokens"`
	CacheWriteTokens float64 `json:"cache_write_tokens"`
	Cost             float64 `json:"cost"`
	Duration         float64 `json:"duration"`
}

// UsageStats accumulates token, cost, and quota accounting for one session.
type UsageStats struct {
	InputTokens      float64 `json:"input_tokens"`
	OutputTokens     float64 `json:"output_tokens"`
	CacheReadTokens  float64 `json:"cache_read_tokens"`
	CacheWriteTokens float64 `json:"cache_write_tokens"`
	Cost             float64 `json:"cost"`
	Duration         float64 `json:"duration"`

	CurrentTokens *float64 `json:"current_tokens,omitempty"`
	TokenLimit    *float64 `json:"token_limit,omitempty"`

	QuotaStart map[string]QuotaSnapshot `json:"quota_snapshots_start,omitempty"`
	QuotaEnd   map[string]QuotaSnapshot `json:"quota_snapshots_end,omitempty"`
}

// TotalTokens returns all tokens including cache reads and writes.
func (u *UsageStats) TotalTokens() float64 {
	return u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheWriteTokens
}

// MergeTurn accumulates one turn's usage.
func (u *UsageStats) MergeTurn(t TurnUsage) {
	u.InputTokens += t.InputTokens
	u.OutputTokens += t.OutputTokens
	u.CacheReadTokens += t.CacheReadTokens
	u.CacheWriteTokens += t.CacheWriteTokens
	u.Cost += t.Cost
	u.Duration += t.Duration
}

// UpdateSnapshot records the latest context-window state and keeps the
// first and last quota snapshots seen.
func (u *UsageStats) UpdateSnapshot(currentTokens, tokenLimit *float64, quota map[string]QuotaSnapshot) {
	if currentTokens != nil {
		u.CurrentTokens = currentTokens
	}
	if tokenLimit != nil {
		u.TokenLimit = tokenLimit
	}
	if len(quota) > 0 {
		if u.QuotaStart == nil {
			u.QuotaStart = quota
		}
		u.QuotaEnd = quota
	}
}

// RequestsConsumed returns the per-quota delta of used requests between
// the first and last snapshots. Empty when no end snapshot was seen.
func (u *UsageStats) RequestsConsumed() map[string]float64 {
	if u.QuotaEnd == nil {
		return nil
	}
	res := make(map[string]float64, len(u.QuotaEnd))
	for key, end := range u.QuotaEnd {
		var startUsed float64
		if start, ok := u.QuotaStart[key]; ok {
			startUsed = start.UsedRequests
		}
		res[key] = end.UsedRequests - startUsed
	}
	return res
}

// Aggregate combines several usage records into one summary: tokens,
// cost, and duration sum; the first start and last end quota snapshots
// are preserved.
func Aggregate(usages []UsageStats) UsageStats {
	var agg UsageStats
	for _, u := range usages {
		agg.MergeTurn(TurnUsage{
			InputTokens:      u.InputTokens,
			OutputTokens:     u.OutputTokens,
			CacheReadTokens:  u.CacheReadTokens,
			CacheWriteTokens: u.CacheWriteTokens,
			Cost:             u.Cost,
			Duration:         u.Duration,
		})
		if u.QuotaStart != nil && agg.QuotaStart == nil {
			agg.QuotaStart = u.QuotaStart
		}
		if u.QuotaEnd != nil {
			agg.QuotaEnd = u.QuotaEnd
		}
	}
	return agg
}

// FormatDuration renders seconds as "2h 5m", "1m 23s", or "45s".
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		return "0s"
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
