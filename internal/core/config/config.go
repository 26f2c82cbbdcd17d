// Package config loads j2k.toml.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

const DefaultFile = "j2k.toml"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Conversion    Conversion    `toml:"conversion"`
	Exclude       Exclude       `toml:"exclude"`
	Watch         Watch         `toml:"watch"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	InputRoot   string `toml:"input_root"`
	OutputDir   string `toml:"output_dir"`
	StateDir    string `toml:"state_dir"`
}

type Conversion struct {
	Jobs                 int               `toml:"jobs"`
	GroupJobs            int               `toml:"group_jobs"`
	NullabilityScanDepth int               `toml:"nullability_scan_depth"`
	Strict               bool              `toml:"strict"`
	GroupBy              string            `toml:"group_by"`
	TypeMappings         map[string]string `toml:"type_mappings"`
}

// Group modes for Conversion.GroupBy.
const (
	GroupByRoot      = "root"
	GroupByDirectory = "directory"
)

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce         time.Duration `toml:"debounce"`
	MaxRunsPerSecond float64       `toml:"max_runs_per_second"`
}

type History struct {
	Enabled *bool  `toml:"enabled"`
	Path    string `toml:"path"`
}

func (h History) IsEnabled() bool {
	if h.Enabled == nil {
		return true
	}
	return *h.Enabled
}

type Observability struct {
	OTLPEndpoint   string  `toml:"otlp_endpoint"`
	ServiceName    string  `toml:"service_name"`
	SampleRate     float64 `toml:"sample_rate"`
	MetricsAddress string  `toml:"metrics_address"`
}

// DefaultConfig is the configuration used when no j2k.toml exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(err) {
		cfg = DefaultConfig()
		ApplyEnvOverrides(cfg)
		return cfg, Validate(cfg)
	}
	return nil, err
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.InputRoot) == "" {
		cfg.Paths.InputRoot = "src/main/java"
	}
	if strings.TrimSpace(cfg.Paths.OutputDir) == "" {
		cfg.Paths.OutputDir = "build/kotlin"
	}
	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".j2k"
	}

	if strings.TrimSpace(cfg.Conversion.GroupBy) == "" {
		cfg.Conversion.GroupBy = GroupByRoot
	}

	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "build", "target", "node_modules"}
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRunsPerSecond == 0 {
		cfg.Watch.MaxRunsPerSecond = 1
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "history.db"
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "j2k"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1
	}
}

// Validate checks a loaded or hand-built configuration.
func Validate(cfg *Config) error {
	if err := validateVersion(cfg); err != nil {
		return err
	}
	if err := validateConversion(cfg); err != nil {
		return err
	}
	if err := validateExclude(cfg); err != nil {
		return err
	}
	if err := validateWatch(cfg); err != nil {
		return err
	}
	return validateObservability(cfg)
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateConversion(cfg *Config) error {
	c := cfg.Conversion
	if c.Jobs < 0 {
		return fmt.Errorf("conversion.jobs must be >= 0, got %d", c.Jobs)
	}
	if c.GroupJobs < 0 {
		return fmt.Errorf("conversion.group_jobs must be >= 0, got %d", c.GroupJobs)
	}
	if c.NullabilityScanDepth < 0 {
		return fmt.Errorf("conversion.nullability_scan_depth must be >= 0, got %d", c.NullabilityScanDepth)
	}
	switch strings.ToLower(strings.TrimSpace(c.GroupBy)) {
	case GroupByRoot, GroupByDirectory:
	default:
		return fmt.Errorf("conversion.group_by must be one of: root, directory")
	}
	for from, to := range c.TypeMappings {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return fmt.Errorf("conversion.type_mappings must not contain empty names (%q = %q)", from, to)
		}
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for i, pattern := range cfg.Exclude.Files {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("exclude.files[%d] must not be empty", i)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.files[%d] %q: %w", i, pattern, err)
		}
	}
	for i, dir := range cfg.Exclude.Dirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("exclude.dirs[%d] must not be empty", i)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0, got %s", cfg.Watch.Debounce)
	}
	if cfg.Watch.MaxRunsPerSecond < 0 {
		return fmt.Errorf("watch.max_runs_per_second must be >= 0, got %v", cfg.Watch.MaxRunsPerSecond)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if r := cfg.Observability.SampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0, 1], got %v", r)
	}
	return nil
}
