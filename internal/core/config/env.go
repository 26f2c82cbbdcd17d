package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: J2K_[SECTION]_[KEY] (e.g., J2K_CONVERSION_STRICT).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "J2K_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.InputRoot, "J2K_PATHS_INPUT_ROOT")
	setEnvString(&cfg.Paths.OutputDir, "J2K_PATHS_OUTPUT_DIR")
	setEnvString(&cfg.Paths.StateDir, "J2K_PATHS_STATE_DIR")

	// Conversion
	setEnvInt(&cfg.Conversion.Jobs, "J2K_CONVERSION_JOBS")
	setEnvInt(&cfg.Conversion.GroupJobs, "J2K_CONVERSION_GROUP_JOBS")
	setEnvInt(&cfg.Conversion.NullabilityScanDepth, "J2K_CONVERSION_NULLABILITY_SCAN_DEPTH")
	setEnvBool(&cfg.Conversion.Strict, "J2K_CONVERSION_STRICT")
	setEnvString(&cfg.Conversion.GroupBy, "J2K_CONVERSION_GROUP_BY")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "J2K_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRunsPerSecond, "J2K_WATCH_MAX_RUNS_PER_SECOND")

	// History
	if val, ok := os.LookupEnv("J2K_HISTORY_ENABLED"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "J2K_HISTORY_ENABLED", "value", val)
			cfg.History.Enabled = &b
		}
	}
	setEnvString(&cfg.History.Path, "J2K_HISTORY_PATH")

	// Observability
	setEnvString(&cfg.Observability.OTLPEndpoint, "J2K_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "J2K_OBSERVABILITY_SERVICE_NAME")
	setEnvFloat64(&cfg.Observability.SampleRate, "J2K_OBSERVABILITY_SAMPLE_RATE")
	setEnvString(&cfg.Observability.MetricsAddress, "J2K_OBSERVABILITY_METRICS_ADDRESS")
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
