package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"secretvet/internal/github"
	"secretvet/internal/run"
)

var alertFlags struct {
	baseURL   string
	locations bool
}

var alertCmd = &cobra.Command{
	Use:   "alert <owner/repo> <alert-id>",
	Short: "Show a secret scanning alert and where the secret appears",
	Args:  cobra.ExactArgs(2),
	RunE:  runAlert,
}

func init() {
	f := alertCmd.Flags()
	f.StringVar(&alertFlags.baseURL, "base-url", "", "GitHub API base URL (default https://api.github.com)")
	f.BoolVar(&alertFlags.locations, "locations", true, "Also list detected locations")
}

func runAlert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params, err := run.NewParams(args[0], args[1])
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(params.AlertID)
	if err != nil {
		return fmt.Errorf("alert-id must be numeric for the GitHub API, got %q", params.AlertID)
	}

	client := github.NewClient(github.Config{
		BaseURL: alertFlags.baseURL,
		Token:   cfg.GitHubToken,
	})

	ctx := cmd.Context()
	alert, err := client.GetAlert(ctx, params.Owner(), params.Repo(), number)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Alert:       #%d (%s)\n", alert.Number, alert.State)
	fmt.Fprintf(out, "Secret type: %s\n", displayType(alert))
	if alert.Validity != "" {
		fmt.Fprintf(out, "Validity:    %s\n", alert.Validity)
	}
	if alert.Resolution != "" {
		fmt.Fprintf(out, "Resolution:  %s (resolved %s)\n", alert.Resolution, alert.ResolvedAt)
	}
	if alert.PushProtectionBypassed {
		fmt.Fprintf(out, "Push protection: bypassed\n")
	}
	if alert.HTMLURL != "" {
		fmt.Fprintf(out, "URL:         %s\n", alert.HTMLURL)
	}

	if !alertFlags.locations {
		return nil
	}
	locations, err := client.ListAlertLocations(ctx, params.Owner(), params.Repo(), number)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nLocations (%d):\n", len(locations))
	for _, loc := range locations {
		fmt.Fprintf(out, "  %s\n", describeLocation(loc))
	}
	return nil
}

func displayType(a *github.Alert) string {
	if a.SecretTypeDisplayName != "" {
		return a.SecretTypeDisplayName
	}
	return a.SecretType
}

func describeLocation(loc github.Location) string {
	d := loc.Details
	switch {
	case d.Path != "":
		s := fmt.Sprintf("%s %s", loc.Type, d.Path)
		if d.StartLine > 0 {
			s += fmt.Sprintf(":%d", d.StartLine)
			if d.EndLine > d.StartLine {
				s += fmt.Sprintf("-%d", d.EndLine)
			}
		}
		if d.CommitSHA != "" {
			s += " @ " + shortSHA(d.CommitSHA)
		}
		return s
	case d.CommitURL != "":
		return fmt.Sprintf("%s %s", loc.Type, d.CommitURL)
	case d.IssueURL != "":
		return fmt.Sprintf("%s %s", loc.Type, d.IssueURL)
	case d.PullRequest != "":
		return fmt.Sprintf("%s %s", loc.Type, d.PullRequest)
	default:
		return loc.Type
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return strings.TrimSpace(sha)
}
