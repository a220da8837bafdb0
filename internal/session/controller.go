package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"secretvet/internal/logging"
)

// SendOptions tunes one prompt exchange.
type SendOptions struct {
	RunID    string
	Timeout  time.Duration
	Progress ProgressFunc

	// Reraise propagates non-timeout errors to the caller. Analysis sets
	// it: one broken candidate is acceptable. Challenge and judge leave
	// it unset and take a degraded answer instead.
	Reraise bool

	// ContinuationPrompt, when non-empty, is resent in the same session
	// whenever the response comes back empty, up to MaxContinuations
	// times. Compensates for turns that end with no content and no
	// pending tool call.
	ContinuationPrompt string
	MaxContinuations   int
	MinResponseLength  int
}

// SendAndCollect drives one prompt exchange: send, await bounded by the
// timeout, recover from timeouts via abort plus collected fallback text,
// and optionally loop on the continuation prompt while the response stays
// empty. The final response is returned even if still empty.
func SendAndCollect(ctx context.Context, sess Session, prompt string, collector *Collector, opts SendOptions) (string, error) {
	log := logging.New("session")

	raw, err := sendOnce(ctx, sess, prompt, collector, opts)
	if err != nil {
		return "", err
	}

	if opts.ContinuationPrompt != "" && opts.MaxContinuations > 0 {
		attempts := 0
		for attempts < opts.MaxContinuations && IsResponseEmpty(raw, opts.MinResponseLength) {
			attempts++
			msg := fmt.Sprintf("empty_response_continuation attempt=%d/%d", attempts, opts.MaxContinuations)
			log.Warn(msg, "run", opts.RunID, "len", len(raw), "min", opts.MinResponseLength)
			if opts.Progress != nil {
				opts.Progress(opts.RunID, msg)
			}

			raw, err = sendOnce(ctx, sess, opts.ContinuationPrompt, collector, opts)
			if err != nil {
				return "", err
			}
		}
		if IsResponseEmpty(raw, opts.MinResponseLength) {
			log.Error("still empty after continuations", "run", opts.RunID, "attempts", attempts)
			if opts.Progress != nil {
				opts.Progress(opts.RunID, fmt.Sprintf("empty_after_%d_continuations", attempts))
			}
		}
	}

	return raw, nil
}

// sendOnce performs a single exchange. Timeouts are absorbed: the session
// is aborted best-effort and whatever text the collector or message log
// holds becomes the response. Other errors propagate only under Reraise.
func sendOnce(ctx context.Context, sess Session, prompt string, collector *Collector, opts SendOptions) (string, error) {
	log := logging.New("session")

	raw, err := sess.SendAndWait(ctx, prompt, opts.Timeout)
	switch {
	case err == nil:
	case IsTimeout(err):
		if opts.Progress != nil {
			opts.Progress(opts.RunID, "timeout_waiting_for_idle: "+err.Error())
		}
		if aerr := sess.Abort(ctx); aerr != nil {
			log.Debug("failed to abort session", "run", opts.RunID, "error", aerr)
		}
		raw = ""
	default:
		if opts.Reraise {
			return "", err
		}
		if opts.Progress != nil {
			opts.Progress(opts.RunID, "session_error: "+err.Error())
		}
		if raw == "" {
			raw = "ERROR: " + err.Error()
		} else {
			raw += "\nERROR: " + err.Error()
		}
	}

	if raw == "" {
		raw = collector.Text()
		if raw == "" {
			raw = FetchLastAssistantMessage(ctx, sess)
		}
	}
	return raw, nil
}

// IsResponseEmpty reports whether raw is missing, blank, or shorter than
// minLength after trimming.
func IsResponseEmpty(raw string, minLength int) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || len(trimmed) < minLength
}

// FetchLastAssistantMessage walks the session's recorded events backwards
// for the most recent assistant message. Returns "" on any failure.
func FetchLastAssistantMessage(ctx context.Context, sess Session) string {
	messages, err := sess.Messages(ctx)
	if err != nil {
		return ""
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Type == EventAssistantMessage {
			return messages[i].Content
		}
	}
	return ""
}

// DestroySafe tears a session down, logging but never propagating failure.
func DestroySafe(ctx context.Context, sess Session, label string) {
	if sess == nil {
		return
	}
	if err := sess.Destroy(ctx); err != nil {
		logging.New("session").Debug("failed to destroy session", "label", label, "error", err)
	}
}
