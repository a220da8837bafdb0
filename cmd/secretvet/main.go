// secretvet validates GitHub secret scanning alerts by running parallel
// adversarial analysis sessions and judging the resulting reports.
//
// Usage:
//
//	secretvet run <owner/repo> <alert-id> [--analyses=N]
//	secretvet alert <owner/repo> <alert-id>
//	secretvet history [run-id]
//	secretvet serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"secretvet/internal/config"
	"secretvet/internal/logging"
	"secretvet/internal/session"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:   "secretvet",
	Short: "Adversarial validation of GitHub secret scanning alerts",
	Long: "Secretvet runs N parallel analysis sessions against a secret scanning\n" +
		"alert, challenges each report adversarially, and judges the survivors\n" +
		"to produce a single defensible verdict.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to config file (YAML or JSON)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(alertCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// loadConfig layers defaults, the optional config file, environment
// variables, and the root logging flags, then installs the global logger.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if rootFlags.configPath != "" {
		loaded, err := config.LoadFromPath(rootFlags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.LogFormat = rootFlags.logFormat
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.Init(level, cfg.LogFormat)
	return cfg, nil
}

// buildFactory resolves the session adapter by name. The stub adapter
// replays canned responses from a directory, for offline runs and tests.
func buildFactory(adapter, stubDir string) (session.Factory, error) {
	switch adapter {
	case "stub":
		return session.NewStubFactory(stubDir), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s (available: stub)", adapter)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
