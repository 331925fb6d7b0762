// Package config loads the SignalDesk daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/NivraSD/SignalDesk-sub028/internal/providers"
	"github.com/NivraSD/SignalDesk-sub028/internal/registry"
)

// Notifier kinds for the dispatcher.
const (
	NotifierLog     = "log"
	NotifierWebhook = "webhook"
)

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`

	// DefaultProvider receives work nothing else matches.
	DefaultProvider string `yaml:"default_provider"`
	// Providers replaces the built-in directory when non-empty.
	Providers []models.CapabilityProvider `yaml:"providers,omitempty"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// StoreConfig holds the SQLite settings.
type StoreConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnalysisConfig bounds and selects the provider analyzer.
type AnalysisConfig struct {
	Timeout  time.Duration    `yaml:"timeout"`
	Analyzer providers.Config `yaml:"analyzer"`
}

// DispatchConfig controls provider notification delivery.
type DispatchConfig struct {
	Enabled      bool           `yaml:"enabled"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	GlobalMax    int            `yaml:"global_max"`
	ByProvider   map[string]int `yaml:"by_provider,omitempty"`
	MaxAttempts  int            `yaml:"max_attempts"`
	Notifier     string         `yaml:"notifier"`
	WebhookURL   string         `yaml:"webhook_url,omitempty"`
	Timeout      time.Duration  `yaml:"timeout"`
	LeaseTTL     time.Duration  `yaml:"lease_ttl"`
}

// TelemetryConfig configures OTLP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Dir returns ~/.signaldesk, or the working directory when home is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".signaldesk"
	}
	return filepath.Join(home, ".signaldesk")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Listen: "127.0.0.1:7480"},
		Store: StoreConfig{
			Path:    filepath.Join(Dir(), "signaldesk.db"),
			Timeout: 5 * time.Second,
		},
		Analysis: AnalysisConfig{
			Timeout:  30 * time.Second,
			Analyzer: providers.Config{Backend: providers.BackendStatic},
		},
		Dispatch: DispatchConfig{
			Enabled:      true,
			PollInterval: 500 * time.Millisecond,
			GlobalMax:    8,
			ByProvider:   map[string]int{},
			MaxAttempts:  3,
			Notifier:     NotifierLog,
			Timeout:      10 * time.Second,
			LeaseTTL:     time.Minute,
		},
		Telemetry:       TelemetryConfig{ServiceName: "signaldesk"},
		Log:             LogConfig{Level: "info"},
		DefaultProvider: registry.DefaultProviderID,
	}
}

// Load reads a YAML config over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be positive")
	}
	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("analysis.timeout must be positive")
	}
	switch c.Analysis.Analyzer.Backend {
	case "", providers.BackendStatic, providers.BackendAnthropic, providers.BackendGemini:
	default:
		return fmt.Errorf("invalid analysis.analyzer.backend %q, must be: static, anthropic, or gemini", c.Analysis.Analyzer.Backend)
	}

	if c.Dispatch.GlobalMax < 1 {
		return fmt.Errorf("dispatch.global_max must be at least 1")
	}
	for id, limit := range c.Dispatch.ByProvider {
		if limit < 1 {
			return fmt.Errorf("dispatch.by_provider.%s must be at least 1", id)
		}
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be at least 1")
	}
	if c.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("dispatch.poll_interval must be positive")
	}
	if c.Dispatch.LeaseTTL <= 0 {
		return fmt.Errorf("dispatch.lease_ttl must be positive")
	}
	switch c.Dispatch.Notifier {
	case NotifierLog:
	case NotifierWebhook:
		if c.Dispatch.WebhookURL == "" {
			return fmt.Errorf("dispatch.webhook_url is required for the webhook notifier")
		}
	default:
		return fmt.Errorf("invalid dispatch.notifier %q, must be: log or webhook", c.Dispatch.Notifier)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}

	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry builds the provider directory from the configured providers, or
// the built-in set when none are configured.
func (c *Config) Registry() (*registry.Registry, error) {
	list := c.Providers
	if len(list) == 0 {
		list = registry.DefaultProviders()
	}
	def := c.DefaultProvider
	if def == "" {
		def = registry.DefaultProviderID
	}
	reg, err := registry.New(list, def)
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	return reg, nil
}
