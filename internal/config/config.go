package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FallbackContextSize is the capacity assumed for a model nothing else knows about.
const FallbackContextSize = 4096

// CounterConfig holds the context counter valves.
type CounterConfig struct {
	CustomModels         string  `toml:"custom_models"`
	ShowStatus           bool    `toml:"show_status"`
	ShowProgressBar      bool    `toml:"show_progress_bar"`
	BarLength            int     `toml:"bar_length"`
	WarnAtPercentage     float64 `toml:"warn_at_percentage"`
	CriticalAtPercentage float64 `toml:"critical_at_percentage"`
	FallbackContextSize  int     `toml:"fallback_context_size"`
	Encoding             string  `toml:"encoding"`
	CacheSize            int     `toml:"cache_size"`
	CacheTTLSeconds      int     `toml:"cache_ttl_seconds"`
}

// CacheTTL is the lifetime of a memoized capacity lookup.
func (c CounterConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RegistryModel is a statically configured model entry.
type RegistryModel struct {
	ID     string `toml:"id"`
	NumCtx int    `toml:"num_ctx"`
}

type RegistryConfig struct {
	Endpoint       string          `toml:"endpoint"`
	APIKey         string          `toml:"api_key"`
	TimeoutSeconds int             `toml:"timeout_seconds"`
	Models         []RegistryModel `toml:"models"`
}

func (c RegistryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type JiraConfig struct {
	BaseURL  string `toml:"base_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Configured reports whether all credentials needed to reach Jira are present.
func (c JiraConfig) Configured() bool {
	return c.BaseURL != "" && c.Username != "" && c.Password != ""
}

type Config struct {
	LogLevel   string         `toml:"log_level"`
	Bind       string         `toml:"bind"`
	EventsBind string         `toml:"events_bind"`
	Counter    CounterConfig  `toml:"counter"`
	Registry   RegistryConfig `toml:"registry"`
	Jira       JiraConfig     `toml:"jira"`
}

func Default() Config {
	return Config{
		LogLevel:   "info",
		Bind:       "127.0.0.1:50061",
		EventsBind: "",
		Counter: CounterConfig{
			CustomModels:         "",
			ShowStatus:           true,
			ShowProgressBar:      true,
			BarLength:            5,
			WarnAtPercentage:     75.0,
			CriticalAtPercentage: 90.0,
			FallbackContextSize:  FallbackContextSize,
			Encoding:             "cl100k_base",
			CacheSize:            256,
			CacheTTLSeconds:      600,
		},
		Registry: RegistryConfig{
			TimeoutSeconds: 5,
		},
	}
}

// DefaultPath returns ~/.ctxmeter/config.toml, or a relative path when there is no home directory.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := Write(path, config); err != nil {
				return config, err
			}
			return config, nil
		}

		return config, err
	}

	return Load(path)
}

// Load parses an existing config file on top of the defaults.
func Load(path string) (Config, error) {
	config := Default()

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, fmt.Errorf("config: parse %s: %w", path, err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Write serializes config to path, creating the parent directory.
func Write(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	configData, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, configData, 0o644)
}

func (c *Config) normalize() {
	c.Bind = strings.TrimSpace(c.Bind)
	c.EventsBind = strings.TrimSpace(c.EventsBind)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Registry.Endpoint = strings.TrimRight(strings.TrimSpace(c.Registry.Endpoint), "/")
	c.Jira.BaseURL = strings.TrimSpace(c.Jira.BaseURL)

	if c.Bind == "" {
		c.Bind = Default().Bind
	}
	if c.Counter.Encoding == "" {
		c.Counter.Encoding = Default().Counter.Encoding
	}
	if c.Counter.FallbackContextSize <= 0 {
		c.Counter.FallbackContextSize = FallbackContextSize
	}
	if c.Counter.CacheSize <= 0 {
		c.Counter.CacheSize = Default().Counter.CacheSize
	}
}

// Validate checks the values a running filter cannot recover from.
func (c Config) Validate() error {
	if c.Counter.BarLength <= 0 {
		return errors.New("config: counter.bar_length must be positive")
	}

	if c.Counter.WarnAtPercentage < 0 || c.Counter.CriticalAtPercentage < 0 {
		return errors.New("config: counter thresholds must not be negative")
	}

	if c.Jira.BaseURL != "" && !strings.HasPrefix(c.Jira.BaseURL, "http://") && !strings.HasPrefix(c.Jira.BaseURL, "https://") {
		return errors.New("config: jira.base_url must start with http:// or https://")
	}

	for _, model := range c.Registry.Models {
		if model.ID == "" || model.NumCtx <= 0 {
			return fmt.Errorf("config: registry model %q needs an id and a positive num_ctx", model.ID)
		}
	}

	return nil
}

// Warnings lists contract violations that are tolerated but worth logging.
func (c Config) Warnings() []string {
	var warnings []string

	if c.Counter.CriticalAtPercentage < c.Counter.WarnAtPercentage {
		warnings = append(warnings, fmt.Sprintf(
			"counter.critical_at_percentage (%.1f) is below counter.warn_at_percentage (%.1f); WARN is never reported",
			c.Counter.CriticalAtPercentage, c.Counter.WarnAtPercentage))
	}

	return warnings
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".ctxmeter"
	}

	return filepath.Join(homeDir, ".ctxmeter")
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
