// Package config loads the council configuration from defaults, an optional
// config file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vango-go/vai-council/pkg/core/credentials"
)

// EnvPrefix prefixes every environment override, e.g. COUNCIL_LOGGING_LEVEL.
const EnvPrefix = "COUNCIL"

// Config is the root configuration of the council CLI.
type Config struct {
	DataDir           string `mapstructure:"data_dir"`
	StorageQuotaBytes int    `mapstructure:"storage_quota_bytes"`

	Keys       KeysConfig       `mapstructure:"keys"`
	Cerebras   CerebrasConfig   `mapstructure:"cerebras"`
	Murf       MurfConfig       `mapstructure:"murf"`
	AssemblyAI AssemblyAIConfig `mapstructure:"assemblyai"`
	Pacing     PacingConfig     `mapstructure:"pacing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// KeysConfig holds vendor API keys. Non-empty values seed the credential
// store on startup.
type KeysConfig struct {
	Cerebras   string `mapstructure:"cerebras_api_key"`
	Murf       string `mapstructure:"murf_api_key"`
	AssemblyAI string `mapstructure:"assembly_api_key"`
}

// CerebrasConfig configures the dialogue model endpoint.
type CerebrasConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// MurfConfig configures speech synthesis.
type MurfConfig struct {
	URL            string        `mapstructure:"url"`
	SampleRate     int           `mapstructure:"sample_rate"`
	Style          string        `mapstructure:"style"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// AssemblyAIConfig configures transcription.
type AssemblyAIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
}

// PacingConfig spaces synthesis requests.
type PacingConfig struct {
	Message time.Duration `mapstructure:"message"`
	Round   time.Duration `mapstructure:"round"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration. If configFile is empty, council.yaml is
// looked up in the working directory and in the data directory; a missing
// file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("council")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Vendor keys also come from their conventional names.
	_ = v.BindEnv("keys.cerebras_api_key", "COUNCIL_KEYS_CEREBRAS_API_KEY", "CEREBRAS_API_KEY")
	_ = v.BindEnv("keys.murf_api_key", "COUNCIL_KEYS_MURF_API_KEY", "MURF_API_KEY")
	_ = v.BindEnv("keys.assembly_api_key", "COUNCIL_KEYS_ASSEMBLY_API_KEY", "ASSEMBLYAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("storage_quota_bytes", 5*1024*1024)

	v.SetDefault("keys.cerebras_api_key", "")
	v.SetDefault("keys.murf_api_key", "")
	v.SetDefault("keys.assembly_api_key", "")

	v.SetDefault("cerebras.base_url", "https://api.cerebras.ai/v1")
	v.SetDefault("cerebras.model", "llama-3.3-70b")

	v.SetDefault("murf.url", "wss://api.murf.ai/v1/speech/stream-input")
	v.SetDefault("murf.sample_rate", 44100)
	v.SetDefault("murf.style", "Conversational")
	v.SetDefault("murf.max_attempts", 3)
	v.SetDefault("murf.attempt_timeout", 60*time.Second)

	v.SetDefault("assemblyai.base_url", "https://api.assemblyai.com")
	v.SetDefault("assemblyai.poll_interval", time.Second)
	v.SetDefault("assemblyai.max_polls", 60)

	v.SetDefault("pacing.message", time.Second)
	v.SetDefault("pacing.round", time.Second)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "council")
	}
	return ".council"
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.StorageQuotaBytes <= 0 {
		return fmt.Errorf("storage_quota_bytes must be > 0")
	}
	if c.Murf.SampleRate <= 0 {
		return fmt.Errorf("murf.sample_rate must be > 0")
	}
	if c.Murf.MaxAttempts <= 0 {
		return fmt.Errorf("murf.max_attempts must be > 0")
	}
	if c.Murf.AttemptTimeout <= 0 {
		return fmt.Errorf("murf.attempt_timeout must be > 0")
	}
	if c.AssemblyAI.PollInterval <= 0 {
		return fmt.Errorf("assemblyai.poll_interval must be > 0")
	}
	if c.AssemblyAI.MaxPolls <= 0 {
		return fmt.Errorf("assemblyai.max_polls must be > 0")
	}
	if c.Pacing.Message < 0 || c.Pacing.Round < 0 {
		return fmt.Errorf("pacing durations must be >= 0")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of text|json")
	}
	return nil
}

// StorePath is the key-value file inside DataDir.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "store.json")
}

// Credentials returns the configured keys as a credential set.
func (c *Config) Credentials() credentials.Set {
	return credentials.Set{
		LLM:           c.Keys.Cerebras,
		Synthesis:     c.Keys.Murf,
		Transcription: c.Keys.AssemblyAI,
	}
}

// NewLogger builds a slog logger writing to w.
func NewLogger(w io.Writer, cfg LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetupLogging installs a logger on stderr as the slog default.
func SetupLogging(cfg LoggingConfig) *slog.Logger {
	logger := NewLogger(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
