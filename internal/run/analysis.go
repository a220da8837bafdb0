package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"secretvet/internal/report"
	"secretvet/internal/session"
)

// runAnalysis executes one analysis session. It never returns an error:
// any failure is trapped into the result so sibling candidates and the
// judge stage still run.
func (c *Coordinator) runAnalysis(ctx context.Context, index int, env *runEnv, params Params) AgentRunResult {
	runID := fmt.Sprintf("%d", index)
	var progressLog []string
	note := func(msg string) {
		progressLog = append(progressLog, msg)
		c.notify(runID, msg)
	}
	fail := func(workspace string, err error) AgentRunResult {
		c.logger.Error("analysis failed", "run_id", runID, "error", err)
		note("error: " + err.Error())
		return AgentRunResult{
			RunID:       runID,
			Workspace:   workspace,
			Error:       err.Error(),
			ProgressLog: progressLog,
		}
	}

	c.logger.Info("analysis start", "run_id", runID, "org_repo", params.OrgRepo, "alert_id", params.AlertID)
	note("analysis_started")

	if env.reportTemplate == "" {
		return fail("", fmt.Errorf("report template not found at %s", c.cfg.ReportTemplateFile))
	}

	runUUID := strings.ReplaceAll(uuid.NewString(), "-", "")
	workspace, err := EnsureWithin(c.cfg.OutputDir, filepath.Join(
		c.cfg.OutputDir, params.OrgRepoSlug(), params.AlertIDSlug(), runUUID))
	if err != nil {
		return fail("", fmt.Errorf("resolve workspace: %w", err))
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fail("", fmt.Errorf("create workspace: %w", err))
	}
	note("workspace: " + workspace)

	contextBlock := fmt.Sprintf(
		"## Context\n\n- Repository: %s\n- Alert ID: %s\n- Workspace: %s !!! DO EVERYTHING HERE, ALWAYS !!!\n",
		params.OrgRepo, params.AlertID, workspace)
	if env.sharedRepo != "" {
		if repoPath := c.stageRepo(ctx, env.sharedRepo, workspace, params.Repo()); repoPath != "" {
			note("repo_staged: " + repoPath)
			contextBlock += "\n" + preCloneNotice(repoPath)
		}
	}

	parts := []string{loadPrompt("analysis_task.md"), contextBlock}
	if env.analysisManifestContext != "" {
		parts = append(parts, env.analysisManifestContext)
	}
	parts = append(parts, "Report template you must use:\n```markdown\n"+env.reportTemplate+"\n```")
	prompt := strings.Join(parts, "\n\n")
	agentPrompt := "@" + env.validator.Name + "\n" + prompt

	collector := session.NewCollector(session.CollectorOptions{
		RunID:          runID,
		StreamLogPath:  filepath.Join(workspace, "stream.log"),
		StreamVerbose:  c.cfg.StreamVerbose,
		Progress:       c.progress,
		ShowUsage:      c.cfg.ShowUsage,
		Skills:         env.analysisManifest.Metas(),
		DisabledSkills: env.analysisDisabled,
	})

	model := env.validator.Model
	if model == "" {
		model = c.cfg.Model
	}
	sess, err := c.factory.CreateSession(ctx, session.Config{
		Model:             model,
		Streaming:         true,
		AgentName:         env.validator.Name,
		AgentInstructions: env.validator.Prompt,
		AvailableTools:    env.validator.Tools,
		SkillDirectories:  append([]string{workspace}, env.analysisSkillDirs...),
		DisabledSkills:    env.analysisDisabled,
		SessionID:         fmt.Sprintf("%s-%s-%s", params.SessionIDPrefix(), runID, runUUID),
	})
	if err != nil {
		return fail(workspace, fmt.Errorf("create session: %w", err))
	}
	defer session.DestroySafe(ctx, sess, runID)
	sess.Subscribe(collector.Handle)

	raw, err := session.SendAndCollect(ctx, sess, agentPrompt, collector, session.SendOptions{
		RunID:              runID,
		Timeout:            c.cfg.AnalysisTimeout(),
		Progress:           c.progress,
		Reraise:            true,
		ContinuationPrompt: continuationPrompt,
		MaxContinuations:   c.cfg.MaxContinuationAttempts,
		MinResponseLength:  c.cfg.MinResponseLength,
	})
	if err != nil {
		return fail(workspace, fmt.Errorf("send analysis prompt: %w", err))
	}
	note("analysis_completed")

	usage := collector.Usage()
	c.logger.Info("analysis done", "run_id", runID, "response_len", len(raw))
	return AgentRunResult{
		RunID:       runID,
		Workspace:   workspace,
		Report:      report.ParseMarkdown(raw),
		RawMarkdown: raw,
		ProgressLog: progressLog,
		Usage:       &usage,
		SkillUsage:  collector.FinalizeSkillUsage(),
		ToolUsage:   collector.ToolUsage(),
	}
}
