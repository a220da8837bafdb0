package run

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"secretvet/internal/session"
)

const challengerSystemMessage = "Respond ONLY with JSON in a fenced ```json``` block, no prose."

// buildChallengePrompt fills the challenge template with the report
// under attack and the workspace the challenger may inspect.
func buildChallengePrompt(template, reportMD, workspacePath, manifestContext string) string {
	if workspacePath == "" {
		workspacePath = "(no workspace available)"
	}
	prompt := strings.ReplaceAll(template, "{{report_markdown}}", reportMD)
	prompt = strings.ReplaceAll(prompt, "{{workspace_path}}", workspacePath)
	parts := []string{prompt}
	if manifestContext != "" {
		parts = append(parts, manifestContext)
	}
	return strings.Join(parts, "\n\n")
}

// runChallenge attacks one analysis report with a fresh challenger
// session. It never returns an error: every failure degrades to an
// INSUFFICIENT_EVIDENCE verdict so the judge stage always runs.
func (c *Coordinator) runChallenge(ctx context.Context, index int, env *runEnv, params Params, result AgentRunResult) ChallengeResult {
	runID := fmt.Sprintf("challenge-%d", index)
	c.logger.Info("challenge start", "index", index)
	c.notify(runID, "challenge_started")

	degrade := func(err error) ChallengeResult {
		c.logger.Warn("challenge failed", "index", index, "error", err)
		return ChallengeResult{
			Verdict:   ChallengeInsufficient,
			Reasoning: "Challenge error: " + err.Error(),
		}
	}

	reportMD := result.RawMarkdown
	if reportMD == "" && result.Report != nil {
		reportMD = result.Report.RawMarkdown
	}
	prompt := buildChallengePrompt(loadPrompt("challenge_task.md"),
		reportMD, result.Workspace, env.challengerManifestContext)
	agentPrompt := "@" + env.challenger.Name + "\n" + prompt

	streamLog := ""
	if env.alertDir != "" {
		name := fmt.Sprintf("challenge-%d-%s-%s.stream.log",
			index, strings.ReplaceAll(params.OrgRepo, "/", "_"), params.AlertID)
		streamLog = filepath.Join(env.alertDir, name)
	} else if result.Workspace != "" {
		streamLog = filepath.Join(result.Workspace, "challenge.stream.log")
	}

	collector := session.NewCollector(session.CollectorOptions{
		RunID:          runID,
		StreamLogPath:  streamLog,
		StreamVerbose:  c.cfg.StreamVerbose,
		Progress:       c.progress,
		ShowUsage:      c.cfg.ShowUsage,
		Skills:         env.challengerManifest.Metas(),
		DisabledSkills: env.challengerDisabled,
	})

	model := env.challenger.Model
	if model == "" {
		model = c.cfg.Model
	}
	skillDirs := env.challengerSkillDirs
	if result.Workspace != "" {
		skillDirs = append([]string{result.Workspace}, skillDirs...)
	}
	sess, err := c.factory.CreateSession(ctx, session.Config{
		Model:             model,
		Streaming:         false,
		AgentName:         env.challenger.Name,
		AgentInstructions: env.challenger.Prompt,
		AvailableTools:    env.challenger.Tools,
		SkillDirectories:  skillDirs,
		DisabledSkills:    env.challengerDisabled,
		SystemMessage:     challengerSystemMessage,
		SessionID:         params.SessionIDPrefix() + "-" + runID,
	})
	if err != nil {
		return degrade(fmt.Errorf("create session: %w", err))
	}
	defer session.DestroySafe(ctx, sess, runID)
	sess.Subscribe(collector.Handle)

	raw, _ := session.SendAndCollect(ctx, sess, agentPrompt, collector, session.SendOptions{
		RunID:    runID,
		Timeout:  c.cfg.ChallengerTimeout(),
		Progress: c.progress,
	})
	cr := ParseChallengeResult(raw)

	if c.cfg.ShowUsage {
		usage := collector.Usage()
		cr.Usage = &usage
		cr.SkillUsage = collector.FinalizeSkillUsage()
		cr.ToolUsage = collector.ToolUsage()
	}

	c.notify(runID, "verdict="+cr.Verdict)
	c.logger.Info("challenge done", "index", index, "verdict", cr.Verdict)
	return cr
}
