package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StubFactory replays canned responses instead of driving a remote
// agent. It serves demos and offline pipeline testing; the response for
// each stage is read from a directory: analysis.md, challenge.md, and
// judge.md. A missing file yields an empty response, which the pipeline
// degrades around like any other empty turn.
type StubFactory struct {
	Dir string
}

// NewStubFactory returns a factory replaying responses from dir.
func NewStubFactory(dir string) *StubFactory {
	return &StubFactory{Dir: dir}
}

// CreateSession opens a stub session. The stage is inferred from the
// trailing structure of the session id the coordinator assigns:
// analysis ids end in "-<index>-<uuid>", challenge ids in
// "-challenge-<index>", the judge id in "-judge". The prefix ahead of
// those tokens may itself contain dashes and is never inspected.
func (f *StubFactory) CreateSession(ctx context.Context, cfg Config) (Session, error) {
	parts := strings.Split(cfg.SessionID, "-")
	name := "analysis.md"
	switch {
	case parts[len(parts)-1] == "judge":
		name = "judge.md"
	case len(parts) >= 2 && parts[len(parts)-2] == "challenge":
		name = "challenge.md"
	}
	data, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		data = nil
	}
	return &stubSession{response: string(data)}, nil
}

type stubSession struct {
	response string
	handler  Handler
}

func (s *stubSession) SendAndWait(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if s.handler != nil {
		s.handler(Event{Type: EventAssistantMessage, Content: s.response})
	}
	return s.response, nil
}

func (s *stubSession) Abort(ctx context.Context) error   { return nil }
func (s *stubSession) Destroy(ctx context.Context) error { return nil }

func (s *stubSession) Subscribe(h Handler) { s.handler = h }

func (s *stubSession) Messages(ctx context.Context) ([]Event, error) {
	return []Event{{Type: EventAssistantMessage, Content: s.response}}, nil
}
