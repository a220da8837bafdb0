package run

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"secretvet/internal/session"
)

const judgeSystemMessage = "Respond ONLY with JSON in a fenced ```json``` block, no prose." +
	" If uncertain, respond with" +
	` {"winner_index": -1, "scores": [], "rationale": "Invalid reports", "verdict": ""}`

// formatSkillUsageSummary renders a methodology compliance table for one
// candidate so the judge can weigh process as well as conclusions.
func formatSkillUsageSummary(result AgentRunResult) string {
	su := result.SkillUsage
	if su == nil {
		return ""
	}

	loadedRequired := intersect(su.LoadedSkills, su.RequiredSkills)
	skippedRequired := subtract(su.RequiredSkills, su.LoadedSkills)

	lines := []string{
		"\n### Methodology Compliance",
		"",
		"| Metric | Value |",
		"|--------|-------|",
		fmt.Sprintf("| Skills Loaded | %d/%d |", len(su.LoadedSkills), len(su.AvailableSkills)),
		fmt.Sprintf("| Required Skills Loaded | %d/%d |", len(loadedRequired), len(su.RequiredSkills)),
		fmt.Sprintf("| Compliance Score | %.0f%% |", su.ComplianceScore()),
		"",
	}
	if len(loadedRequired) > 0 {
		lines = append(lines, "**Required Skills Loaded:** "+strings.Join(loadedRequired, ", "))
	}
	if len(skippedRequired) > 0 {
		lines = append(lines, "**Required Skills Skipped:** "+strings.Join(skippedRequired, ", "))
	}
	if len(su.LoadedSkills) > 0 {
		loaded := append([]string(nil), su.LoadedSkills...)
		sort.Strings(loaded)
		lines = append(lines, "**All Skills Loaded:** "+strings.Join(loaded, ", "))
	}
	return strings.Join(lines, "\n")
}

// formatReports combines all candidate reports, compliance summaries,
// and challenge annotations into one blob for the judge prompt.
func formatReports(results []AgentRunResult) string {
	blocks := make([]string, 0, len(results))
	for idx, res := range results {
		body := res.RawMarkdown
		if body == "" && res.Report != nil {
			body = res.Report.RawMarkdown
		}
		block := fmt.Sprintf("REPORT %d:\n%s\n%s\n", idx, body, formatSkillUsageSummary(res))

		if cr := res.Challenge; cr != nil {
			block += "\n--- ADVERSARIAL CHALLENGE RESULT ---\n" +
				"Challenge Verdict: " + cr.Verdict + "\n" +
				"Reasoning: " + cr.Reasoning + "\n"
			if len(cr.EvidenceGaps) > 0 {
				block += "Evidence Gaps: " + strings.Join(cr.EvidenceGaps, ", ") + "\n"
			}
			if len(cr.ContradictingEvidence) > 0 {
				block += "Contradicting Evidence: " + strings.Join(cr.ContradictingEvidence, ", ") + "\n"
			}
			block += "--- END CHALLENGE ---\n"
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n")
}

func buildJudgePrompt(prompt, reportTemplate, contextBlock, reportsBlob string) string {
	templateBlock := ""
	if reportTemplate != "" {
		templateBlock = "\n\nExpected report template:\n```markdown\n" + reportTemplate + "\n```"
	}
	return prompt + templateBlock + "\n\n" + contextBlock + "\n\nReports:\n" + reportsBlob
}

// runJudge evaluates all candidates in a single session. It never
// returns an error: an unusable judge response degrades to a no-winner
// result with zero scores.
func (c *Coordinator) runJudge(ctx context.Context, env *runEnv, params Params, results []AgentRunResult) JudgeResult {
	c.logger.Info("judge start", "org_repo", params.OrgRepo, "alert_id", params.AlertID)
	c.notify("judge", "judge_started")

	workspace := env.alertDir
	degrade := func(err error) JudgeResult {
		c.logger.Warn("judge failed", "error", err)
		jr, _ := ParseJudgeResult("", len(results))
		jr.Rationale = "Judge error: " + err.Error()
		jr.Workspace = workspace
		return jr
	}

	c.notify("judge", "workspace: "+workspace)
	contextBlock := fmt.Sprintf(
		"## Context\n\n- Repository: %s\n- Alert ID: %s\n- Workspace: %s !!! DO EVERYTHING HERE, ALWAYS !!!\n",
		params.OrgRepo, params.AlertID, workspace)
	fullPrompt := buildJudgePrompt(loadPrompt("judge_task.md"),
		env.reportTemplate, contextBlock, formatReports(results))
	agentPrompt := "@" + env.judge.Name + "\n" + fullPrompt

	streamLog := filepath.Join(workspace, fmt.Sprintf("judge-%s-%s.stream.log",
		strings.ReplaceAll(params.OrgRepo, "/", "_"), params.AlertID))
	collector := session.NewCollector(session.CollectorOptions{
		RunID:         "judge",
		StreamLogPath: streamLog,
		StreamVerbose: c.cfg.StreamVerbose,
		Progress:      c.progress,
		ShowUsage:     c.cfg.ShowUsage,
	})

	model := env.judge.Model
	if model == "" {
		model = c.cfg.Model
	}
	sess, err := c.factory.CreateSession(ctx, session.Config{
		Model:             model,
		Streaming:         false,
		AgentName:         env.judge.Name,
		AgentInstructions: env.judge.Prompt,
		AvailableTools:    env.judge.Tools,
		SkillDirectories:  append([]string{workspace}, env.analysisSkillDirs...),
		DisabledSkills:    env.allDisabled,
		SystemMessage:     judgeSystemMessage,
		SessionID:         params.SessionIDPrefix() + "-judge",
	})
	if err != nil {
		return degrade(fmt.Errorf("create session: %w", err))
	}
	defer session.DestroySafe(ctx, sess, "judge")
	sess.Subscribe(collector.Handle)

	raw, _ := session.SendAndCollect(ctx, sess, agentPrompt, collector, session.SendOptions{
		RunID:    "judge",
		Timeout:  c.cfg.JudgeTimeout(),
		Progress: c.progress,
	})

	jr, parsed := ParseJudgeResult(raw, len(results))
	usage := collector.Usage()
	jr.Usage = &usage
	jr.Workspace = workspace
	if parsed {
		c.notify("judge", "judge_completed")
		c.logger.Info("judge done", "winner_index", jr.WinnerIndex)
	} else {
		c.notify("judge", "judge_failed_parse")
		c.logger.Warn("judge response did not parse", "org_repo", params.OrgRepo, "alert_id", params.AlertID)
	}
	return jr
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func subtract(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if !set[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
