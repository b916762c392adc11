// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultFile      = ".agentready.yaml"
	DefaultEndpoint  = "https://apihub.googleapis.com"
	DefaultTimeout   = 30 * time.Second
	DefaultLinter    = "spectral"
	DefaultRuleset   = ".spectral.yaml"
	DefaultStateDir  = ".agentready/run"
	DefaultAuthMode  = AuthModeGcloud
	DefaultTokenEnv  = "AGENTREADY_TOKEN"
	DefaultLifetime  = 50 * time.Minute
	DefaultAttribute = "agentic-readiness"
)

// Auth modes.
const (
	AuthModeGcloud = "gcloud"
	AuthModeEnv    = "env"
	AuthModeStatic = "static"
)

// Attribute scopes.
const (
	ScopeResource = "resource"
	ScopeVersion  = "version"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full agentready configuration.
type Config struct {
	// Project is the registry project (account scope).
	Project string `yaml:"project"`

	// Location is the registry region.
	Location string `yaml:"location"`

	// Endpoint is the registry base URL.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds every registry round-trip.
	Timeout time.Duration `yaml:"timeout"`

	Auth      AuthConfig      `yaml:"auth"`
	Lint      LintConfig      `yaml:"lint"`
	Attribute AttributeConfig `yaml:"attribute"`

	// StateDir holds run records; relative paths are anchored at the workspace root.
	StateDir string `yaml:"state_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// AuthConfig selects how bearer credentials are obtained.
type AuthConfig struct {
	// Mode is one of: gcloud | env | static.
	Mode string `yaml:"mode"`

	// TokenEnv names the environment variable holding the token (mode env).
	TokenEnv string `yaml:"token_env"`

	// Token is a literal token (mode static). Prefer env in shared files.
	Token string `yaml:"token"`

	// Command overrides the token command (mode gcloud).
	Command []string `yaml:"command"`

	// TokenLifetime is how long a command-issued token is reused.
	TokenLifetime time.Duration `yaml:"token_lifetime"`
}

// LintConfig locates the linter and its ruleset.
type LintConfig struct {
	Binary  string `yaml:"binary"`
	Ruleset string `yaml:"ruleset"`
}

// AttributeConfig describes the readiness attribute definition.
type AttributeConfig struct {
	ID          string        `yaml:"id"`
	DisplayName string        `yaml:"display_name"`
	Description string        `yaml:"description"`
	Scope       string        `yaml:"scope"`
	Values      []ValueConfig `yaml:"values"`
}

// ValueConfig is one allowed value of the attribute.
type ValueConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path, applies defaults and the environment overlay. A missing
// file is not an error when optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
		slog.Debug("config: loaded file", "path", path)
	case os.IsNotExist(err) && optional:
		slog.Debug("config: no file, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg, os.Getenv)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Project, "AGENTREADY_PROJECT")
	set(&cfg.Location, "AGENTREADY_LOCATION")
	set(&cfg.Endpoint, "AGENTREADY_ENDPOINT")
	set(&cfg.Lint.Binary, "AGENTREADY_SPECTRAL_BIN")
	set(&cfg.LogLevel, "AGENTREADY_LOG_LEVEL")
	set(&cfg.StateDir, "AGENTREADY_STATE_DIR")

	// A token in the environment switches the default gcloud mode to env.
	if cfg.Auth.Mode == "" && getenv(DefaultTokenEnv) != "" {
		cfg.Auth.Mode = AuthModeEnv
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = DefaultAuthMode
	}
	if cfg.Auth.TokenEnv == "" {
		cfg.Auth.TokenEnv = DefaultTokenEnv
	}
	if cfg.Auth.TokenLifetime <= 0 {
		cfg.Auth.TokenLifetime = DefaultLifetime
	}
	if cfg.Lint.Binary == "" {
		cfg.Lint.Binary = DefaultLinter
	}
	if cfg.Lint.Ruleset == "" {
		cfg.Lint.Ruleset = DefaultRuleset
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	a := &cfg.Attribute
	if a.ID == "" {
		a.ID = DefaultAttribute
	}
	if a.DisplayName == "" {
		a.DisplayName = "Agentic Readiness"
	}
	if a.Description == "" {
		a.Description = "Readiness of the API version for consumption by AI agents, derived from lint findings."
	}
	if a.Scope == "" {
		a.Scope = ScopeVersion
	}
	if len(a.Values) == 0 {
		a.Values = []ValueConfig{
			{ID: "readiness_low", DisplayName: "Low"},
			{ID: "readiness_medium", DisplayName: "Medium"},
			{ID: "readiness_high", DisplayName: "High"},
		}
	}
}

// Validate checks enums and the attribute definition. It does not require
// registry coordinates; see ValidateRegistry.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeGcloud, AuthModeEnv, AuthModeStatic:
	default:
		return fmt.Errorf("%w: auth.mode must be gcloud, env or static, got %q", ErrInvalid, c.Auth.Mode)
	}
	if c.Auth.Mode == AuthModeStatic && c.Auth.Token == "" {
		return fmt.Errorf("%w: auth.token is required when auth.mode is static", ErrInvalid)
	}

	switch c.Attribute.Scope {
	case ScopeResource, ScopeVersion:
	default:
		return fmt.Errorf("%w: attribute.scope must be resource or version, got %q", ErrInvalid, c.Attribute.Scope)
	}

	seen := make(map[string]bool)
	for i, v := range c.Attribute.Values {
		if v.ID == "" {
			return fmt.Errorf("%w: attribute value at index %d missing id", ErrInvalid, i)
		}
		if seen[v.ID] {
			return fmt.Errorf("%w: duplicate attribute value id %s", ErrInvalid, v.ID)
		}
		seen[v.ID] = true
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// ValidateRegistry checks the settings every registry call needs.
func (c *Config) ValidateRegistry() error {
	if strings.TrimSpace(c.Project) == "" {
		return fmt.Errorf("%w: project is required (set project in %s or AGENTREADY_PROJECT)", ErrInvalid, DefaultFile)
	}
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("%w: location is required (set location in %s or AGENTREADY_LOCATION)", ErrInvalid, DefaultFile)
	}
	return nil
}

// SlogLevel returns the configured slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
