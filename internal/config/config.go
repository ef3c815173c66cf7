// Package config loads LogJuicer's configuration: the include/exclude glob
// rules consulted during source expansion, per-job overrides, and the
// pipeline knobs exposed by spec §4.5/§6. It is the concrete implementation
// of the "Config" collaborator described at spec §6.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/logjuicer/logjuicer/internal/apperrors"
	"github.com/logjuicer/logjuicer/internal/lineiter"
)

// JobOverride narrows or widens the default include/exclude rules for
// sources belonging to a job whose name matches Glob (spec §6: "a per-job
// override table keyed by job-name glob").
type JobOverride struct {
	Glob              string   `mapstructure:"job"`
	Includes          []string `mapstructure:"includes"`
	Excludes          []string `mapstructure:"excludes"`
	DefaultExcludesOn *bool    `mapstructure:"default_excludes"`
}

// PipelineConfig holds the run-time knobs spec §4.5 and §4.3 expose as
// defaults an operator can override.
type PipelineConfig struct {
	AnomalyThreshold float32 `mapstructure:"anomaly_threshold"`
	BeforeContext    int     `mapstructure:"before_context"`
	AfterContext     int     `mapstructure:"after_context"`
	ContextDistance  int     `mapstructure:"context_distance"`
	IndexDim         uint32  `mapstructure:"index_dim"`
	NestedTarDepth   int     `mapstructure:"nested_tar_depth"`
}

// OutputConfig names the directories LogJuicer's CLI reads and writes.
type OutputConfig struct {
	ReportsDir string `mapstructure:"reports_dir"`
	ModelsDir  string `mapstructure:"models_dir"`
	HistoryDir string `mapstructure:"history_dir"`
}

// NotificationConfig mirrors the teacher's Shoutrrr settings, repurposed to
// announce a run's anomaly count instead of a container scan summary.
type NotificationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ShoutrrrURL string `mapstructure:"shoutrrr_url"`
}

// Config is LogJuicer's top-level configuration: the three regex/glob lists
// named at spec §6 ("includes", "excludes", "default_excludes on|off"), the
// per-job override table, and the ambient pipeline/output/notification
// settings.
type Config struct {
	Includes          []string      `mapstructure:"includes"`
	Excludes          []string      `mapstructure:"excludes"`
	DefaultExcludesOn bool          `mapstructure:"default_excludes"`
	Jobs              []JobOverride `mapstructure:"jobs"`
	HistoryRetention  int           `mapstructure:"history_retention_days"`

	Pipeline     PipelineConfig      `mapstructure:"pipeline"`
	Output       OutputConfig        `mapstructure:"output"`
	Notification NotificationConfig `mapstructure:"notification"`

	// ConfigFilePath is the file viper resolved, empty when running on
	// defaults and environment variables alone.
	ConfigFilePath string `mapstructure:"-"`
}

// Environment variables consumed directly by the core, per spec §6 — they
// configure external collaborators (transport, dedup policy), not Config
// itself, so they are not folded into this struct: internal/transport reads
// the TLS and auth variables itself, and LOGJUICER_KEEP_DUPLICATE is read
// through EnvKeepDuplicateSet and passed on as the pipeline's KeepDuplicate.
const (
	EnvCAExtra       = "LOGJUICER_CA_EXTRA"
	EnvSSLNoVerify   = "LOGJUICER_SSL_NO_VERIFY"
	EnvHTTPAuth      = "LOGJUICER_HTTP_AUTH"
	EnvKeepDuplicate = "LOGJUICER_KEEP_DUPLICATE"
)

// Load reads configuration from configPath (or the default search path if
// empty), applying defaults, then an optional .env file, then a YAML config
// file, then LOGJUICER_-prefixed environment variables, in that increasing
// order of precedence.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load() // nolint:errcheck // .env is optional convenience for local runs

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("logjuicer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/logjuicer")
		v.AddConfigPath("/etc/logjuicer")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, &apperrors.ConfigError{Path: configPath, Err: err}
		}
	}

	v.SetEnvPrefix("LOGJUICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &apperrors.ConfigError{Path: configPath, Err: err}
	}
	cfg.ConfigFilePath = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("includes", []string{})
	v.SetDefault("excludes", []string{})
	v.SetDefault("default_excludes", true)
	v.SetDefault("history_retention_days", 30)

	v.SetDefault("pipeline.anomaly_threshold", 0.3)
	v.SetDefault("pipeline.before_context", 3)
	v.SetDefault("pipeline.after_context", 1)
	v.SetDefault("pipeline.context_distance", 5)
	v.SetDefault("pipeline.index_dim", 1<<16)
	v.SetDefault("pipeline.nested_tar_depth", lineiter.MaxArchiveDepth)

	v.SetDefault("output.reports_dir", "./reports")
	v.SetDefault("output.models_dir", "./models")
	v.SetDefault("output.history_dir", "./history")

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.shoutrrr_url", "")
}

// Validate rejects a config whose regexes or pipeline knobs are malformed,
// per spec §7 ("ConfigError ... fatal, surfaced before any I/O").
func (c *Config) Validate() error {
	src := c.source()

	for i, p := range c.Includes {
		if _, err := regexp.Compile(p); err != nil {
			return &apperrors.ConfigError{Path: src, Key: fmt.Sprintf("includes[%d]", i), Err: err}
		}
	}
	for i, p := range c.Excludes {
		if _, err := regexp.Compile(p); err != nil {
			return &apperrors.ConfigError{Path: src, Key: fmt.Sprintf("excludes[%d]", i), Err: err}
		}
	}
	for i, j := range c.Jobs {
		if j.Glob == "" {
			return &apperrors.ConfigError{Path: src, Key: fmt.Sprintf("jobs[%d].job", i), Err: fmt.Errorf("job glob must not be empty")}
		}
		for k, p := range j.Excludes {
			if _, err := regexp.Compile(p); err != nil {
				return &apperrors.ConfigError{Path: src, Key: fmt.Sprintf("jobs[%d].excludes[%d]", i, k), Err: err}
			}
		}
		for k, p := range j.Includes {
			if _, err := regexp.Compile(p); err != nil {
				return &apperrors.ConfigError{Path: src, Key: fmt.Sprintf("jobs[%d].includes[%d]", i, k), Err: err}
			}
		}
	}

	if c.Pipeline.AnomalyThreshold < 0 || c.Pipeline.AnomalyThreshold > 1 {
		return &apperrors.ConfigError{Path: src, Key: "pipeline.anomaly_threshold", Err: fmt.Errorf("must be in [0.0, 1.0], got %v", c.Pipeline.AnomalyThreshold)}
	}
	if c.Pipeline.IndexDim != 0 && (c.Pipeline.IndexDim < 1<<14 || c.Pipeline.IndexDim > 1<<18) {
		return &apperrors.ConfigError{Path: src, Key: "pipeline.index_dim", Err: fmt.Errorf("must be between 2^14 and 2^18, got %d", c.Pipeline.IndexDim)}
	}
	if c.Pipeline.NestedTarDepth < 2 {
		return &apperrors.ConfigError{Path: src, Key: "pipeline.nested_tar_depth", Err: fmt.Errorf("must be >= 2, got %d", c.Pipeline.NestedTarDepth)}
	}
	return nil
}

func (c *Config) source() string {
	if c.ConfigFilePath == "" {
		return "(defaults/environment)"
	}
	return c.ConfigFilePath
}

// ExcludeRulesFor builds the lineiter.ExcludeRules that apply to a source
// carrying jobName, layering any matching per-job override's excludes on
// top of the global ones (spec §6, §4.4). jobName may be empty for plain
// file/dir content with no associated CI job.
func (c *Config) ExcludeRulesFor(jobName string) lineiter.ExcludeRules {
	excludesOn := c.DefaultExcludesOn
	globs := append([]string{}, c.Excludes...)

	if jobName != "" {
		for _, j := range c.Jobs {
			if !globMatch(j.Glob, jobName) {
				continue
			}
			if j.DefaultExcludesOn != nil {
				excludesOn = *j.DefaultExcludesOn
			}
			globs = append(globs, j.Excludes...)
		}
	}

	return lineiter.ExcludeRules{
		DefaultExcludesOn: excludesOn,
		Globs:             globs,
	}
}

// IncludesFor returns the effective include patterns for jobName: the
// global list plus any matching per-job override's additions.
func (c *Config) IncludesFor(jobName string) []string {
	out := append([]string{}, c.Includes...)
	if jobName == "" {
		return out
	}
	for _, j := range c.Jobs {
		if globMatch(j.Glob, jobName) {
			out = append(out, j.Includes...)
		}
	}
	return out
}

func globMatch(glob, name string) bool {
	ok, err := doublestar.Match(glob, name)
	return err == nil && ok
}

// EnvKeepDuplicateSet reports whether LOGJUICER_KEEP_DUPLICATE is set. The
// CLI passes the result to the pipeline as KeepDuplicate, which reaches
// internal/report's context merger as its keepDuplicate argument.
func EnvKeepDuplicateSet() bool {
	return os.Getenv(EnvKeepDuplicate) != ""
}
