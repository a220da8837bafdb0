// Package mcp exposes validation runs over the Model Context Protocol
// so an orchestrating agent can start a run, poll its progress, and
// fetch the outcome.
package mcp

import (
	"context"
	"fmt"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"secretvet/internal/config"
	"secretvet/internal/logging"
	"secretvet/internal/run"
	"secretvet/internal/session"
)

// progressBufferCap bounds the in-memory progress log per validation.
const progressBufferCap = 2000

// Server wraps the MCP SDK server and manages one validation at a time.
type Server struct {
	MCPServer *sdkmcp.Server

	cfg     *config.Config
	factory session.Factory

	mu      sync.Mutex
	current *validation
}

// validation tracks one in-flight or finished run.
type validation struct {
	id    string
	coord *run.Coordinator
	done  chan struct{}

	mu       sync.Mutex
	progress []string
	outcome  *run.Outcome
	err      error
}

func (v *validation) record(runID, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.progress) >= progressBufferCap {
		return
	}
	v.progress = append(v.progress, runID+": "+msg)
}

// NewServer creates an MCP server with the validation tools registered.
func NewServer(cfg *config.Config, factory session.Factory, version string) *Server {
	s := &Server{cfg: cfg, factory: factory}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "secretvet", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_validation",
		Description: "Start validating a secret scanning alert. Spawns the pipeline and returns a validation ID.",
	}, s.handleStartValidation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_progress",
		Description: "Get pipeline state and progress messages for a validation. Messages are returned from the given index onward.",
	}, s.handleGetProgress)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_outcome",
		Description: "Get the final outcome of a finished validation: all analysis results, challenge annotations, and the judge selection.",
	}, s.handleGetOutcome)
}

// --- Tool input/output types ---

type startValidationInput struct {
	OrgRepo  string `json:"org_repo" jsonschema:"repository as owner/repo"`
	AlertID  string `json:"alert_id" jsonschema:"secret scanning alert identifier"`
	Analyses int    `json:"analyses,omitempty" jsonschema:"number of parallel analysis candidates (default from config)"`
	Force    bool   `json:"force,omitempty" jsonschema:"replace a finished validation without fetching its outcome first"`
}

type startValidationOutput struct {
	ValidationID string `json:"validation_id"`
	Analyses     int    `json:"analyses"`
	State        string `json:"state"`
}

type getProgressInput struct {
	ValidationID string `json:"validation_id" jsonschema:"validation ID from start_validation"`
	Since        int    `json:"since,omitempty" jsonschema:"return messages from this index onward (0-based)"`
}

type getProgressOutput struct {
	State    string   `json:"state"`
	Done     bool     `json:"done"`
	Messages []string `json:"messages"`
	Total    int      `json:"total"`
}

type getOutcomeInput struct {
	ValidationID string `json:"validation_id" jsonschema:"validation ID from start_validation"`
}

type getOutcomeOutput struct {
	State   string       `json:"state"`
	Outcome *run.Outcome `json:"outcome,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleStartValidation(ctx context.Context, _ *sdkmcp.CallToolRequest, input startValidationInput) (*sdkmcp.CallToolResult, startValidationOutput, error) {
	logger := logging.New("mcp")
	params, err := run.NewParams(input.OrgRepo, input.AlertID)
	if err != nil {
		return nil, startValidationOutput{}, err
	}

	cfg := *s.cfg
	if input.Analyses > 0 {
		cfg.AnalysisCount = input.Analyses
	}

	s.mu.Lock()
	if s.current != nil {
		select {
		case <-s.current.done:
			if !input.Force {
				logger.Info("replacing finished validation", "old_id", s.current.id)
			}
		default:
			s.mu.Unlock()
			return nil, startValidationOutput{}, fmt.Errorf("validation %s is still running", s.current.id)
		}
	}

	v := &validation{
		id:   params.OrgRepoSlug() + "-" + params.AlertIDSlug(),
		done: make(chan struct{}),
	}
	v.coord = run.NewCoordinator(&cfg, s.factory, v.record)
	s.current = v
	s.mu.Unlock()

	// The pipeline outlives the tool call; progress and outcome are
	// polled through the other tools.
	go func() {
		defer close(v.done)
		outcome, err := v.coord.Run(context.Background(), params)
		v.mu.Lock()
		v.outcome, v.err = outcome, err
		v.mu.Unlock()
	}()

	logger.Info("validation started", "id", v.id, "analyses", cfg.AnalysisCount)
	return nil, startValidationOutput{
		ValidationID: v.id,
		Analyses:     cfg.AnalysisCount,
		State:        string(v.coord.State()),
	}, nil
}

func (s *Server) handleGetProgress(ctx context.Context, _ *sdkmcp.CallToolRequest, input getProgressInput) (*sdkmcp.CallToolResult, getProgressOutput, error) {
	v, err := s.getValidation(input.ValidationID)
	if err != nil {
		return nil, getProgressOutput{}, err
	}

	done := false
	select {
	case <-v.done:
		done = true
	default:
	}

	v.mu.Lock()
	total := len(v.progress)
	since := input.Since
	if since < 0 || since > total {
		since = total
	}
	messages := append([]string(nil), v.progress[since:]...)
	v.mu.Unlock()

	return nil, getProgressOutput{
		State:    string(v.coord.State()),
		Done:     done,
		Messages: messages,
		Total:    total,
	}, nil
}

func (s *Server) handleGetOutcome(ctx context.Context, _ *sdkmcp.CallToolRequest, input getOutcomeInput) (*sdkmcp.CallToolResult, getOutcomeOutput, error) {
	v, err := s.getValidation(input.ValidationID)
	if err != nil {
		return nil, getOutcomeOutput{}, err
	}

	select {
	case <-v.done:
	default:
		return nil, getOutcomeOutput{State: string(v.coord.State())}, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	out := getOutcomeOutput{State: string(v.coord.State()), Outcome: v.outcome}
	if v.err != nil {
		out.Error = v.err.Error()
	}
	return nil, out, nil
}

func (s *Server) getValidation(id string) (*validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, fmt.Errorf("no validation running")
	}
	if id != "" && id != s.current.id {
		return nil, fmt.Errorf("unknown validation id %q", id)
	}
	return s.current, nil
}
