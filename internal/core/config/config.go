package config

import (
	"time"

	"csguard/internal/engine/rules"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	WatchPaths    []string      `toml:"watch_paths"`
	Exclude       Exclude       `toml:"exclude"`
	Watch         Watch         `toml:"watch"`
	Rules         Rules         `toml:"rules"`
	Performance   Performance   `toml:"performance"`
	DB            Database      `toml:"db"`
	Output        Output        `toml:"output"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

// Rules holds per-rule switches. A rule without an entry runs.
type Rules struct {
	UnderscorePrefix RuleToggle    `toml:"underscore_prefix"`
	UseThisPrefix    RuleToggle    `toml:"use_this_prefix"`
	LinqAliases      RuleToggle    `toml:"linq_aliases"`
	MinimumLength    MinimumLength `toml:"minimum_length"`
	BuiltinTypes     BuiltinTypes  `toml:"builtin_types"`
}

type RuleToggle struct {
	Enabled *bool `toml:"enabled"`
}

func (r RuleToggle) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

type MinimumLength struct {
	Enabled *bool `toml:"enabled"`
	Min     int   `toml:"min"`
}

type BuiltinTypes struct {
	Enabled *bool  `toml:"enabled"`
	Prefer  string `toml:"prefer"`
}

type Performance struct {
	Workers           int     `toml:"workers"`
	MaxFilesPerSecond float64 `toml:"max_files_per_second"`
	QueueSize         int     `toml:"queue_size"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	Retention   int           `toml:"retention"`
}

type Output struct {
	Format   string `toml:"format"`
	SARIF    string `toml:"sarif"`
	Markdown string `toml:"markdown"`
	// Inject names an existing markdown file whose csguard:summary block is
	// refreshed after each run.
	Inject string `toml:"inject"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// RuleOptions translates the [rules] section into analyzer options.
func (c *Config) RuleOptions() rules.Options {
	opts := rules.DefaultOptions()
	opts.Disabled = make(map[rules.RuleID]bool)
	toggles := map[rules.RuleID]*bool{
		rules.RuleUnderscorePrefix:   c.Rules.UnderscorePrefix.Enabled,
		rules.RuleUseThisPrefix:      c.Rules.UseThisPrefix.Enabled,
		rules.RuleLinqAliases:        c.Rules.LinqAliases.Enabled,
		rules.RuleMinimumLength:      c.Rules.MinimumLength.Enabled,
		rules.RuleBuiltInTypeAliases: c.Rules.BuiltinTypes.Enabled,
	}
	for id, enabled := range toggles {
		if enabled != nil && !*enabled {
			opts.Disabled[id] = true
		}
	}
	if c.Rules.MinimumLength.Min > 0 {
		opts.MinNameLength = c.Rules.MinimumLength.Min
	}
	if c.Rules.BuiltinTypes.Prefer != "" {
		opts.AliasPreference = rules.AliasPreference(c.Rules.BuiltinTypes.Prefer)
	}
	return opts
}
