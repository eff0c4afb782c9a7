// Package config provides YAML configuration parsing for the winevent agent.
//
// Example configuration:
//
//	log_level: info
//	frequency: 2s
//	max_events: 100
//
//	sources:
//	  - name: dns
//	    providers: [Microsoft-Windows-DNS-Client]
//	    frequency: 5s
//	  - name: services
//	    providers: [Service Control Manager, Application Error]
//	    per_provider: true
//
//	line_buffer:
//	  flush_interval: 1s
//	  max_lines: 500
//
//	sinks:
//	  stdout: true
//	  file: ${WINEVENT_LOG_FILE:-}
//	  sqlite: /var/lib/winevent/lines.db
//
//	server:
//	  port: 8080
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	minFrequency     = 100 * time.Millisecond
	maxFrequency     = time.Hour
	maxMaxEvents     = 10000
	defaultFrequency = 2 * time.Second
	defaultMaxEvents = 100
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// LogLevel is one of debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Frequency is the default polling frequency for sources.
	// Accepts duration strings like "2s" or "500ms". Defaults to 2s.
	Frequency Duration `yaml:"frequency"`

	// MaxEvents is the default per-query record cap. Defaults to 100.
	MaxEvents int `yaml:"max_events"`

	// Sources defines the readers to run.
	Sources []SourceConfig `yaml:"sources"`

	// LineBuffer controls how lines are batched before reaching the sinks.
	LineBuffer LineBufferConfig `yaml:"line_buffer"`

	// Sinks selects where lines are written. With no sink configured,
	// lines go to stdout.
	Sinks SinksConfig `yaml:"sinks"`

	// Server configures the status API.
	Server ServerConfig `yaml:"server"`
}

// SourceConfig defines one reader.
type SourceConfig struct {
	// Name identifies the source in logs and status output.
	Name string `yaml:"name"`

	// Providers are the event log providers to query.
	// Values support environment variable substitution.
	Providers []string `yaml:"providers"`

	// Frequency overrides the global frequency for this source.
	Frequency Duration `yaml:"frequency"`

	// MaxEvents overrides the global max_events for this source.
	MaxEvents int `yaml:"max_events"`

	// PerProvider runs one reader per provider instead of a single reader
	// querying all of them. Readers are named "<name>/<provider>".
	PerProvider bool `yaml:"per_provider"`
}

// LineBufferConfig controls line batching.
type LineBufferConfig struct {
	// FlushInterval is how often pending lines are flushed. Defaults to 1s.
	FlushInterval Duration `yaml:"flush_interval"`

	// MaxLines flushes early once this many lines are pending. Defaults to 500.
	MaxLines int `yaml:"max_lines"`
}

// SinksConfig selects line destinations. Any combination may be enabled.
type SinksConfig struct {
	// Stdout writes JSON lines to standard output.
	Stdout bool `yaml:"stdout"`

	// File appends JSON lines to the file at this path.
	File string `yaml:"file"`

	// SQLite stores lines in the database at this path.
	SQLite string `yaml:"sqlite"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	// Port is the HTTP port. 0 disables the API.
	Port int `yaml:"port"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in provider names and sink paths.
// Defaults are applied for LogLevel (info), Frequency (2s), MaxEvents (100)
// and Sinks (stdout when none is set).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = Duration(defaultFrequency)
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = defaultMaxEvents
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	if !cfg.Sinks.Stdout && cfg.Sinks.File == "" && cfg.Sinks.SQLite == "" {
		cfg.Sinks.Stdout = true
	}

	return &cfg, nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if err := validateFrequency("frequency", c.Frequency.Duration()); err != nil {
		return err
	}
	if err := validateMaxEvents("max_events", c.MaxEvents); err != nil {
		return err
	}

	if len(c.Sources) == 0 {
		return errors.New("at least one source must be defined")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]

		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if strings.Contains(src.Name, "/") {
			return fmt.Errorf("sources[%d] (%s): name cannot contain '/'", i, src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("sources[%d] (%s): duplicate source name", i, src.Name)
		}
		seen[src.Name] = true

		if len(src.Providers) == 0 {
			return fmt.Errorf("sources[%d] (%s): at least one provider is required", i, src.Name)
		}
		providerSeen := make(map[string]bool, len(src.Providers))
		for j, p := range src.Providers {
			expanded, err := expandEnvVars(p)
			if err != nil {
				return fmt.Errorf("sources[%d] (%s): providers[%d]: %w", i, src.Name, j, err)
			}
			expanded = strings.TrimSpace(expanded)
			if expanded == "" {
				return fmt.Errorf("sources[%d] (%s): providers[%d] is empty", i, src.Name, j)
			}
			if strings.Contains(expanded, "'") {
				return fmt.Errorf("sources[%d] (%s): providers[%d] cannot contain a single quote", i, src.Name, j)
			}
			if providerSeen[expanded] {
				return fmt.Errorf("sources[%d] (%s): duplicate provider %q", i, src.Name, expanded)
			}
			providerSeen[expanded] = true
			src.Providers[j] = expanded
		}

		if src.Frequency != 0 {
			if err := validateFrequency(fmt.Sprintf("sources[%d] (%s): frequency", i, src.Name), src.Frequency.Duration()); err != nil {
				return err
			}
		}
		if src.MaxEvents != 0 {
			if err := validateMaxEvents(fmt.Sprintf("sources[%d] (%s): max_events", i, src.Name), src.MaxEvents); err != nil {
				return err
			}
		}
	}

	if c.LineBuffer.FlushInterval.Duration() < 0 {
		return fmt.Errorf("line_buffer.flush_interval cannot be negative, got %s", c.LineBuffer.FlushInterval.Duration())
	}
	if c.LineBuffer.MaxLines < 0 {
		return fmt.Errorf("line_buffer.max_lines cannot be negative, got %d", c.LineBuffer.MaxLines)
	}

	var err error
	if c.Sinks.File, err = expandEnvVars(c.Sinks.File); err != nil {
		return fmt.Errorf("sinks.file: %w", err)
	}
	if c.Sinks.SQLite, err = expandEnvVars(c.Sinks.SQLite); err != nil {
		return fmt.Errorf("sinks.sqlite: %w", err)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func validateFrequency(field string, d time.Duration) error {
	if d < minFrequency {
		return fmt.Errorf("%s must be at least %s, got %s", field, minFrequency, d)
	}
	if d > maxFrequency {
		return fmt.Errorf("%s must not exceed %s, got %s", field, maxFrequency, d)
	}
	return nil
}

func validateMaxEvents(field string, n int) error {
	if n < 1 || n > maxMaxEvents {
		return fmt.Errorf("%s must be between 1 and %d, got %d", field, maxMaxEvents, n)
	}
	return nil
}
