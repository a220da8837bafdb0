// Package config holds runtime configuration for validation runs.
// Values come from defaults, then an optional YAML or JSON file, then
// environment variables, then per-run CLI overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for a validation run.
type Config struct {
	// Model is the model identifier passed to the session transport.
	Model string `yaml:"model" json:"model"`

	AnalysisCount            int `yaml:"analysis_count" json:"analysis_count"`
	AnalysisTimeoutSeconds   int `yaml:"analysis_timeout_seconds" json:"analysis_timeout_seconds"`
	JudgeTimeoutSeconds      int `yaml:"judge_timeout_seconds" json:"judge_timeout_seconds"`
	ChallengerTimeoutSeconds int `yaml:"challenger_timeout_seconds" json:"challenger_timeout_seconds"`

	// MaxParallelSessions caps concurrent analysis sessions.
	// Zero means "run the whole batch at once".
	MaxParallelSessions int `yaml:"max_parallel_sessions" json:"max_parallel_sessions"`

	// MaxContinuationAttempts bounds continuation prompts after an empty
	// response. Zero disables continuations.
	MaxContinuationAttempts int `yaml:"max_continuation_attempts" json:"max_continuation_attempts"`
	// MinResponseLength is the shortest response accepted without a
	// continuation. Zero disables the length gate.
	MinResponseLength int `yaml:"min_response_length" json:"min_response_length"`

	StreamVerbose bool `yaml:"stream_verbose" json:"stream_verbose"`
	ShowUsage     bool `yaml:"show_usage" json:"show_usage"`

	// PreCloneRepo clones the repository once per alert and stages the
	// checkout into every analysis workspace, so N candidates cost one
	// network fetch. A failed pre-clone degrades to per-candidate clones.
	PreCloneRepo bool `yaml:"pre_clone_repo" json:"pre_clone_repo"`

	AgentFile           string `yaml:"agent_file" json:"agent_file"`
	JudgeAgentFile      string `yaml:"judge_agent_file" json:"judge_agent_file"`
	ChallengerAgentFile string `yaml:"challenger_agent_file" json:"challenger_agent_file"`
	ReportTemplateFile  string `yaml:"report_template_file" json:"report_template_file"`

	AnalysisSkillDirs   []string `yaml:"analysis_skill_directories" json:"analysis_skill_directories"`
	ChallengerSkillDirs []string `yaml:"challenger_skill_directories" json:"challenger_skill_directories"`
	DisabledSkills      []string `yaml:"disabled_skills" json:"disabled_skills"`

	OutputDir string `yaml:"output_dir" json:"output_dir"`
	DBPath    string `yaml:"db_path" json:"db_path"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	GitHubToken string `yaml:"github_token" json:"github_token"`
}

// Overrides are the per-run CLI knobs. Nil fields keep the configured value.
type Overrides struct {
	Analyses      *int
	Timeout       *int
	JudgeTimeout  *int
	StreamVerbose *bool
	ShowUsage     *bool
	PreClone      *bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:                    "claude-sonnet-4.5",
		AnalysisCount:            3,
		AnalysisTimeoutSeconds:   1800,
		JudgeTimeoutSeconds:      300,
		ChallengerTimeoutSeconds: 300,
		MaxContinuationAttempts:  2,
		MinResponseLength:        500,
		AgentFile:                "agents/secret_validator.agent.md",
		JudgeAgentFile:           "agents/judge.agent.md",
		ChallengerAgentFile:      "agents/challenger.agent.md",
		ReportTemplateFile:       "templates/report.md",
		OutputDir:                "analysis",
		DBPath:                   DefaultDBPath,
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// DefaultDBPath is the default relative path for the run history DB.
const DefaultDBPath = ".secretvet/secretvet.db"

// LoadFromPath reads a config file (YAML or JSON) over the defaults.
// Format is detected by extension or, failing that, by content.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config bytes over the defaults. ext is the file extension
// for a format hint; empty means detect from content.
func Load(data []byte, ext string) (*Config, error) {
	cfg := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	case ".yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// ApplyEnv layers environment variables onto the config. lookup is
// normally os.LookupEnv; tests inject their own.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var err error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || err != nil {
			return
		}
		n, perr := strconv.Atoi(strings.TrimSpace(v))
		if perr != nil {
			err = fmt.Errorf("parse %s: %w", key, perr)
			return
		}
		*dst = n
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || err != nil {
			return
		}
		b, perr := strconv.ParseBool(strings.TrimSpace(v))
		if perr != nil {
			err = fmt.Errorf("parse %s: %w", key, perr)
			return
		}
		*dst = b
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = SplitCommaList(v)
		}
	}

	str("MODEL", &c.Model)
	num("ANALYSIS_COUNT", &c.AnalysisCount)
	num("ANALYSIS_TIMEOUT_SECONDS", &c.AnalysisTimeoutSeconds)
	num("JUDGE_TIMEOUT_SECONDS", &c.JudgeTimeoutSeconds)
	num("CHALLENGER_TIMEOUT_SECONDS", &c.ChallengerTimeoutSeconds)
	num("MAX_PARALLEL_SESSIONS", &c.MaxParallelSessions)
	num("MAX_CONTINUATION_ATTEMPTS", &c.MaxContinuationAttempts)
	num("MIN_RESPONSE_LENGTH", &c.MinResponseLength)
	flag("STREAM_VERBOSE", &c.StreamVerbose)
	flag("SHOW_USAGE", &c.ShowUsage)
	flag("PRE_CLONE_REPO", &c.PreCloneRepo)
	str("AGENT_FILE", &c.AgentFile)
	str("JUDGE_AGENT_FILE", &c.JudgeAgentFile)
	str("CHALLENGER_AGENT_FILE", &c.ChallengerAgentFile)
	str("REPORT_TEMPLATE_FILE", &c.ReportTemplateFile)
	list("ANALYSIS_SKILL_DIRECTORIES", &c.AnalysisSkillDirs)
	if _, ok := lookup("ANALYSIS_SKILL_DIRECTORIES"); !ok {
		list("SKILL_DIRECTORIES", &c.AnalysisSkillDirs)
	}
	list("CHALLENGER_SKILL_DIRECTORIES", &c.ChallengerSkillDirs)
	list("DISABLED_SKILLS", &c.DisabledSkills)
	str("OUTPUT_DIR", &c.OutputDir)
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("GITHUB_TOKEN", &c.GitHubToken)
	return err
}

// Apply layers per-run overrides onto the config. Only set fields apply.
func (c *Config) Apply(o Overrides) {
	if o.Analyses != nil {
		c.AnalysisCount = *o.Analyses
	}
	if o.Timeout != nil {
		c.AnalysisTimeoutSeconds = *o.Timeout
	}
	if o.JudgeTimeout != nil {
		c.JudgeTimeoutSeconds = *o.JudgeTimeout
	}
	if o.StreamVerbose != nil {
		c.StreamVerbose = *o.StreamVerbose
	}
	if o.ShowUsage != nil {
		c.ShowUsage = *o.ShowUsage
	}
	if o.PreClone != nil {
		c.PreCloneRepo = *o.PreClone
	}
}

// Validate rejects non-positive counts and timeouts. Continuation knobs
// may be zero (disabled) but not negative.
func (c *Config) Validate() error {
	positive := map[string]int{
		"analysis_count":             c.AnalysisCount,
		"analysis_timeout_seconds":   c.AnalysisTimeoutSeconds,
		"judge_timeout_seconds":      c.JudgeTimeoutSeconds,
		"challenger_timeout_seconds": c.ChallengerTimeoutSeconds,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", name, v)
		}
	}
	if c.MaxParallelSessions < 0 {
		return fmt.Errorf("max_parallel_sessions must be >= 0, got %d", c.MaxParallelSessions)
	}
	if c.MaxContinuationAttempts < 0 {
		return fmt.Errorf("max_continuation_attempts must be >= 0, got %d", c.MaxContinuationAttempts)
	}
	if c.MinResponseLength < 0 {
		return fmt.Errorf("min_response_length must be >= 0, got %d", c.MinResponseLength)
	}
	return nil
}

// EffectiveParallel returns the analysis-stage semaphore size:
// the configured cap, or the full batch when unset.
func (c *Config) EffectiveParallel() int {
	if c.MaxParallelSessions > 0 {
		return c.MaxParallelSessions
	}
	return c.AnalysisCount
}

// AnalysisTimeout returns the per-analysis send timeout.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutSeconds) * time.Second
}

// JudgeTimeout returns the judge send timeout.
func (c *Config) JudgeTimeout() time.Duration {
	return time.Duration(c.JudgeTimeoutSeconds) * time.Second
}

// ChallengerTimeout returns the per-challenge send timeout.
func (c *Config) ChallengerTimeout() time.Duration {
	return time.Duration(c.ChallengerTimeoutSeconds) * time.Second
}

// SplitCommaList normalizes a comma-separated value to a list,
// dropping empty entries.
func SplitCommaList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FilterExistingDirs keeps only paths that exist on disk.
func FilterExistingDirs(dirs []string) []string {
	var out []string
	for _, d := range dirs {
		if _, err := os.Stat(d); err == nil {
			out = append(out, d)
		}
	}
	return out
}
