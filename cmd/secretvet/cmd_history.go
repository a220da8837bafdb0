package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"secretvet/internal/store"
)

var historyFlags struct {
	repo  string
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded validation runs, or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.repo, "repo", "", "Only show runs for this owner/repo")
	f.IntVar(&historyFlags.limit, "limit", 20, "Maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("run-id must be numeric, got %q", args[0])
		}
		return showRun(cmd, st, id)
	}

	runs, err := st.ListRuns(historyFlags.repo, historyFlags.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs.")
		return nil
	}
	for _, r := range runs {
		verdict := r.Verdict
		if verdict == "" {
			verdict = "-"
		}
		fmt.Fprintf(out, "#%-4d %-30s alert %-10s winner %2d  %-14s %s\n",
			r.ID, r.OrgRepo, r.AlertID, r.WinnerIndex, verdict, r.FinishedAt)
	}
	return nil
}

func showRun(cmd *cobra.Command, st *store.Store, id int64) error {
	rec, err := st.GetRun(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no run with id %d", id)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      #%d\n", rec.ID)
	fmt.Fprintf(out, "Alert:    %s #%s\n", rec.OrgRepo, rec.AlertID)
	fmt.Fprintf(out, "Started:  %s\n", rec.StartedAt)
	fmt.Fprintf(out, "Finished: %s\n", rec.FinishedAt)
	fmt.Fprintf(out, "Analyses: %d\n", rec.Analyses)

	if rec.Outcome == nil {
		return nil
	}
	jr := rec.Outcome.JudgeResult
	if jr.WinnerIndex >= 0 {
		fmt.Fprintf(out, "Winner:   report %d\n", jr.WinnerIndex)
	} else {
		fmt.Fprintf(out, "Winner:   none\n")
	}
	if jr.Verdict != "" {
		fmt.Fprintf(out, "Verdict:  %s\n", jr.Verdict)
	}
	if jr.Rationale != "" {
		fmt.Fprintf(out, "Rationale: %s\n", jr.Rationale)
	}
	for i, res := range rec.Outcome.AnalysisResults {
		status := "ok"
		if res.Failed() {
			status = "failed: " + res.Error
		}
		line := fmt.Sprintf("  report %d [%s]", i, status)
		if res.Challenge != nil {
			line += " challenge=" + res.Challenge.Verdict
		}
		if res.Report != nil && res.Report.Verdict != "" {
			line += " verdict=" + res.Report.Verdict
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
