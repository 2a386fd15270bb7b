package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: CSGUARD_[SECTION]_[KEY] (e.g., CSGUARD_DB_PATH).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Paths.StateDir, "CSGUARD_PATHS_STATE_DIR")

	setEnvBool(&cfg.DB.Enabled, "CSGUARD_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "CSGUARD_DB_PATH")

	setEnvDuration(&cfg.Watch.Debounce, "CSGUARD_WATCH_DEBOUNCE")

	setEnvInt(&cfg.Performance.Workers, "CSGUARD_PERFORMANCE_WORKERS")
	setEnvFloat64(&cfg.Performance.MaxFilesPerSecond, "CSGUARD_PERFORMANCE_MAX_FILES_PER_SECOND")

	setEnvString(&cfg.Output.Format, "CSGUARD_OUTPUT_FORMAT")

	setEnvString(&cfg.Observability.MetricsAddr, "CSGUARD_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CSGUARD_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
