package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"csguard/internal/core/config/helpers"
	"csguard/internal/core/errors"
)

func invalid(format string, args ...any) error {
	return errors.New(errors.CodeValidationError, fmt.Sprintf(format, args...))
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return invalid("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateExcludes(cfg *Config) error {
	if _, err := helpers.CompileGlobs(cfg.Exclude.Dirs, "exclude.dirs"); err != nil {
		return invalid("%v", err)
	}
	if _, err := helpers.CompileGlobs(cfg.Exclude.Files, "exclude.files"); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func validateRules(cfg *Config) error {
	switch cfg.Rules.BuiltinTypes.Prefer {
	case "keyword", "canonical":
	default:
		return invalid("rules.builtin_types.prefer must be one of: keyword, canonical")
	}
	if cfg.Rules.MinimumLength.Min > 64 {
		return invalid("rules.minimum_length.min must be at most 64, got %d", cfg.Rules.MinimumLength.Min)
	}
	return nil
}

func validatePerformance(cfg *Config) error {
	if cfg.Performance.Workers > 256 {
		return invalid("performance.workers must be at most 256, got %d", cfg.Performance.Workers)
	}
	if cfg.Performance.MaxFilesPerSecond < 0 {
		return invalid("performance.max_files_per_second must not be negative")
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		return invalid("db.path must not be empty")
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Format {
	case "text", "sarif", "markdown":
	default:
		return invalid("output.format must be one of: text, sarif, markdown")
	}
	if cfg.Output.SARIF != "" && cfg.Output.SARIF == cfg.Output.Markdown {
		return invalid("output conflict: output.sarif and output.markdown share the same path %q", cfg.Output.SARIF)
	}
	if cfg.Output.Inject != "" && (cfg.Output.Inject == cfg.Output.Markdown || cfg.Output.Inject == cfg.Output.SARIF) {
		return invalid("output conflict: output.inject %q is also a generated report", cfg.Output.Inject)
	}
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return invalid("observability.metrics_addr %q is not host:port", addr)
		}
	}
	return nil
}

// Validate reports problems that do not stop a run, such as watch paths
// that do not exist yet.
func Validate(cfg *Config) []error {
	var errs []error
	for i, p := range cfg.WatchPaths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("watch_paths[%d] %q does not exist", i, p))
			continue
		}
		if !info.IsDir() && !strings.HasSuffix(strings.ToLower(p), ".cs") {
			errs = append(errs, fmt.Errorf("watch_paths[%d] %q is neither a directory nor a .cs file", i, p))
		}
	}
	for i := range cfg.WatchPaths {
		for j := i + 1; j < len(cfg.WatchPaths); j++ {
			if helpers.IsPathOverlap(cleanAbs(cfg.WatchPaths[i]), cleanAbs(cfg.WatchPaths[j])) {
				errs = append(errs, fmt.Errorf("watch_paths[%d] and watch_paths[%d] overlap; files are analyzed once", i, j))
			}
		}
	}
	return errs
}
