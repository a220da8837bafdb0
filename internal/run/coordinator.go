package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"secretvet/internal/agent"
	"secretvet/internal/config"
	"secretvet/internal/evals"
	"secretvet/internal/logging"
	"secretvet/internal/session"
)

// defaultSkillsBase is the root of the on-disk skill library, with one
// subdirectory per agent type.
const defaultSkillsBase = "skills"

// State is the coordinator's pipeline position. Transitions are strictly
// ordered; a stage never starts before the previous one fully finished.
type State string

const (
	StateCreated     State = "created"
	StateAnalyzing   State = "analyzing"
	StateChallenging State = "challenging"
	StateJudging     State = "judging"
	StateDone        State = "done"
)

// Coordinator drives a full validation run: N parallel analyses, N
// parallel adversarial challenges, then a single judge pass.
type Coordinator struct {
	cfg      *config.Config
	factory  session.Factory
	progress session.ProgressFunc
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// NewCoordinator builds a coordinator. The progress callback may be nil.
func NewCoordinator(cfg *config.Config, factory session.Factory, progress session.ProgressFunc) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		factory:  factory,
		progress: progress,
		logger:   logging.New("coordinator"),
		state:    StateCreated,
	}
}

// State returns the current pipeline state. Safe for concurrent use.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify("coordinator", "state: "+string(s))
}

func (c *Coordinator) notify(runID, msg string) {
	if c.progress != nil {
		c.progress(runID, msg)
	}
}

// runEnv holds everything loaded once per run and shared read-only by
// all stage tasks.
type runEnv struct {
	validator  *agent.Definition
	judge      *agent.Definition
	challenger *agent.Definition

	reportTemplate string
	alertDir       string
	sharedRepo     string

	analysisSkillDirs       []string
	analysisManifest        *agent.SkillManifest
	analysisManifestContext string
	analysisDisabled        []string

	challengerSkillDirs       []string
	challengerManifest        *agent.SkillManifest
	challengerManifestContext string
	challengerDisabled        []string

	allDisabled []string
}

// prepare loads agent definitions, the report template, and the skill
// library, and creates the per-alert output directory. Failures here are
// configuration errors and fail the run before any session is opened.
func (c *Coordinator) prepare(ctx context.Context, params Params) (*runEnv, error) {
	env := &runEnv{}

	var err error
	if env.validator, err = agent.LoadDefinition(c.cfg.AgentFile); err != nil {
		return nil, fmt.Errorf("load validator agent: %w", err)
	}
	if env.judge, err = agent.LoadDefinition(c.cfg.JudgeAgentFile); err != nil {
		return nil, fmt.Errorf("load judge agent: %w", err)
	}
	if env.challenger, err = agent.LoadDefinition(c.cfg.ChallengerAgentFile); err != nil {
		return nil, fmt.Errorf("load challenger agent: %w", err)
	}

	env.reportTemplate = env.validator.ReportTemplate
	if env.reportTemplate == "" {
		env.reportTemplate = agent.LoadReportTemplate(c.cfg.ReportTemplateFile)
	}

	env.alertDir, err = EnsureWithin(c.cfg.OutputDir, filepath.Join(
		c.cfg.OutputDir, params.OrgRepoSlug(), params.AlertIDSlug()))
	if err != nil {
		return nil, fmt.Errorf("resolve alert dir: %w", err)
	}
	if err := os.MkdirAll(env.alertDir, 0o755); err != nil {
		return nil, fmt.Errorf("create alert dir: %w", err)
	}

	if c.cfg.PreCloneRepo {
		env.sharedRepo = c.preCloneRepo(ctx, params.OrgRepo, env.alertDir)
	}

	env.analysisSkillDirs = agent.DiscoverSkillDirs(defaultSkillsBase, "analysis", c.cfg.AnalysisSkillDirs)
	env.analysisManifest = agent.BuildSkillManifest(env.analysisSkillDirs)
	env.analysisManifestContext = agent.FormatManifestForContext(env.analysisManifest)

	env.challengerSkillDirs = agent.DiscoverSkillDirs(defaultSkillsBase, "challenger", c.cfg.ChallengerSkillDirs)
	env.challengerManifest = agent.BuildSkillManifest(env.challengerSkillDirs)
	env.challengerManifestContext = agent.FormatManifestForContext(env.challengerManifest)

	// Hidden skills are resolved once here and threaded down as data.
	hiddenAnalysis := agent.DiscoverHiddenSkills(filepath.Join(defaultSkillsBase, "analysis"))
	hiddenChallenger := agent.DiscoverHiddenSkills(filepath.Join(defaultSkillsBase, "challenger"))
	env.analysisDisabled = dedupe(hiddenAnalysis, c.cfg.DisabledSkills)
	env.challengerDisabled = dedupe(hiddenChallenger, c.cfg.DisabledSkills)
	env.allDisabled = dedupe(env.analysisDisabled, env.challengerDisabled)

	return env, nil
}

// Run executes the full pipeline for one alert. It returns an error only
// for configuration problems surfaced before the first session opens;
// once analyses start, the run always completes with a full Outcome.
func (c *Coordinator) Run(ctx context.Context, params Params) (*Outcome, error) {
	c.logger.Info("run start", "org_repo", params.OrgRepo, "alert_id", params.AlertID,
		"analyses", c.cfg.AnalysisCount)

	env, err := c.prepare(ctx, params)
	if err != nil {
		return nil, err
	}

	// Stage 1: parallel analyses. Results land at their own index so
	// candidate order is stable regardless of completion order.
	c.setState(StateAnalyzing)
	n := c.cfg.AnalysisCount
	results := make([]AgentRunResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.EffectiveParallel())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i] = c.runAnalysis(gctx, i, env, params)
			return nil
		})
	}
	_ = g.Wait() // failures are captured inside each result

	for i := range results {
		if results[i].Report != nil {
			results[i] = results[i].WithEval(evals.RunAll(results[i].Report, results[i].RunID))
		}
	}

	// Stage 2: parallel challenges, one per candidate, annotating the
	// result at the same index.
	c.setState(StateChallenging)
	cg, cgctx := errgroup.WithContext(ctx)
	cg.SetLimit(c.cfg.EffectiveParallel())
	for i := 0; i < n; i++ {
		cg.Go(func() error {
			results[i] = results[i].WithChallenge(c.runChallenge(cgctx, i, env, params, results[i]))
			return nil
		})
	}
	_ = cg.Wait()

	// Stage 3: single judge pass over all annotated candidates.
	c.setState(StateJudging)
	judge := c.runJudge(ctx, env, params, results)

	c.setState(StateDone)
	c.logger.Info("run done", "org_repo", params.OrgRepo, "alert_id", params.AlertID,
		"winner_index", judge.WinnerIndex)
	return &Outcome{
		OrgRepo:         params.OrgRepo,
		AlertID:         params.AlertID,
		AnalysisResults: results,
		JudgeResult:     judge,
	}, nil
}

func dedupe(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
