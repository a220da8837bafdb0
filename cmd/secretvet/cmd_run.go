package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"secretvet/internal/config"
	"secretvet/internal/logging"
	"secretvet/internal/reporting"
	"secretvet/internal/run"
	"secretvet/internal/store"
)

var runFlags struct {
	analyses      int
	timeout       int
	judgeTimeout  int
	streamVerbose bool
	showUsage     bool
	preClone      bool
	adapter       string
	stubDir       string
	noHistory     bool
}

var runCmd = &cobra.Command{
	Use:   "run <owner/repo> <alert-id>",
	Short: "Validate a secret scanning alert end to end",
	Long: `Run launches N parallel analysis sessions against the alert, subjects
each report to an adversarial challenge, and judges the annotated set.
Artifacts land under the output directory; the outcome is recorded in
the run history DB.`,
	Args: cobra.ExactArgs(2),
	RunE: runValidation,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.analyses, "analyses", 0, "Number of parallel analysis candidates (default from config)")
	f.IntVar(&runFlags.timeout, "timeout", 0, "Per-analysis timeout in seconds")
	f.IntVar(&runFlags.judgeTimeout, "judge-timeout", 0, "Judge timeout in seconds")
	f.BoolVar(&runFlags.streamVerbose, "stream-verbose", false, "Echo streamed session events to stderr")
	f.BoolVar(&runFlags.showUsage, "show-usage", false, "Collect token/skill/tool usage and write diagnostics.json")
	f.BoolVar(&runFlags.preClone, "pre-clone", false, "Clone the repository once and stage it into every analysis workspace")
	f.StringVar(&runFlags.adapter, "adapter", "stub", "Session adapter (stub)")
	f.StringVar(&runFlags.stubDir, "stub-dir", ".secretvet/stub", "Directory of canned responses for the stub adapter")
	f.BoolVar(&runFlags.noHistory, "no-history", false, "Skip recording the run in the history DB")
}

func runValidation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Apply(runOverrides(cmd))
	if err := cfg.Validate(); err != nil {
		return err
	}

	params, err := run.NewParams(args[0], args[1])
	if err != nil {
		return err
	}
	factory, err := buildFactory(runFlags.adapter, runFlags.stubDir)
	if err != nil {
		return err
	}

	progress := func(runID, msg string) {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", runID, msg)
	}

	started := time.Now()
	coord := run.NewCoordinator(cfg, factory, progress)
	outcome, err := coord.Run(cmd.Context(), params)
	if err != nil {
		return fmt.Errorf("validation run: %w", err)
	}

	alertDir := outcome.JudgeResult.Workspace
	reporting.Persist(outcome, alertDir, cfg.ShowUsage)

	if !runFlags.noHistory {
		recordRun(cfg.DBPath, outcome, started)
	}

	fmt.Fprintln(cmd.OutOrStdout(), reporting.BuildSummary(outcome, alertDir).Render())
	return nil
}

// recordRun saves the outcome to the history DB. History failures are
// logged and do not fail a completed validation.
func recordRun(dbPath string, outcome *run.Outcome, started time.Time) {
	log := logging.New("history")
	st, err := store.Open(dbPath)
	if err != nil {
		log.Warn("open history db", "path", dbPath, "error", err)
		return
	}
	defer st.Close()
	id, err := st.SaveRun(outcome, started)
	if err != nil {
		log.Warn("save run", "error", err)
		return
	}
	log.Info("run recorded", "id", id)
}

func runOverrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	if cmd.Flags().Changed("analyses") {
		o.Analyses = &runFlags.analyses
	}
	if cmd.Flags().Changed("timeout") {
		o.Timeout = &runFlags.timeout
	}
	if cmd.Flags().Changed("judge-timeout") {
		o.JudgeTimeout = &runFlags.judgeTimeout
	}
	if cmd.Flags().Changed("stream-verbose") {
		o.StreamVerbose = &runFlags.streamVerbose
	}
	if cmd.Flags().Changed("show-usage") {
		o.ShowUsage = &runFlags.showUsage
	}
	if cmd.Flags().Changed("pre-clone") {
		o.PreClone = &runFlags.preClone
	}
	return o
}
