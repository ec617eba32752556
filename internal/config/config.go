package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	DefaultTopK           = 4
	DefaultServerAddr     = ":8787"
	DefaultLogLevel       = "info"
	DefaultCaptureTimeout = 60 * time.Second
	DefaultMaxBytes       = 100 * 1024 * 1024 // 100MB
	DefaultRedisKey       = "pdf-qa:settings"

	envPrefix = "PDFQA"
	appDir    = "pdf-qa"
)

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	TopK int `yaml:"top_k"`
}

type CaptureConfig struct {
	MaxBytes int64         `yaml:"max_bytes"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SettingsConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
	Debug         bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embedding"`
	RAG      RAGConfig      `yaml:"rag"`
	Capture  CaptureConfig  `yaml:"capture"`
	Settings SettingsConfig `yaml:"settings"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// flagBindings maps config keys to the CLI flags that may override them.
var flagBindings = map[string]string{
	"log.level":          "log-level",
	"settings.backend":   "settings-backend",
	"settings.path":      "settings-path",
	"settings.dsn":       "settings-dsn",
	"server.addr":        "addr",
	"rag.top_k":          "top-k",
	"llm.provider":       "llm-provider",
	"llm.model":          "llm-model",
	"embedding.model":    "embedding-model",
	"embedding.base_url": "embedding-base-url",
	"llm.base_url":       "llm-base-url",
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM:      LLMConfig{Provider: ProviderOpenAI},
		EmbedLLM: LLMConfig{Provider: ProviderOpenAI},
		RAG:      RAGConfig{TopK: DefaultTopK},
		Capture: CaptureConfig{
			MaxBytes: DefaultMaxBytes,
			Timeout:  DefaultCaptureTimeout,
		},
		Settings: SettingsConfig{
			Backend:  BackendFile,
			Path:     defaultSettingsPath(),
			RedisKey: DefaultRedisKey,
		},
		Server: ServerConfig{Addr: DefaultServerAddr},
		Log:    LogConfig{Level: DefaultLogLevel},
	}
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, appDir, "settings.yaml")
}

// LoadConfig reads the YAML file at path (a missing file keeps the defaults)
// and applies PDFQA_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	return Load(path, nil)
}

// Load is LoadConfig with optional flag overrides, which win over the
// environment and the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}
	applyOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *Config, v *viper.Viper) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	setString("llm.provider", &cfg.LLM.Provider)
	setString("llm.base_url", &cfg.LLM.BaseURL)
	setString("llm.model", &cfg.LLM.Model)
	setString("embedding.provider", &cfg.EmbedLLM.Provider)
	setString("embedding.base_url", &cfg.EmbedLLM.BaseURL)
	setString("embedding.model", &cfg.EmbedLLM.Model)
	setString("settings.backend", &cfg.Settings.Backend)
	setString("settings.path", &cfg.Settings.Path)
	setString("settings.dsn", &cfg.Settings.DSN)
	setString("settings.redis_addr", &cfg.Settings.RedisAddr)
	setString("settings.redis_password", &cfg.Settings.RedisPassword)
	setString("settings.redis_key", &cfg.Settings.RedisKey)
	setString("server.addr", &cfg.Server.Addr)
	setString("log.level", &cfg.Log.Level)

	if v.IsSet("rag.top_k") {
		cfg.RAG.TopK = v.GetInt("rag.top_k")
	}
	if v.IsSet("settings.redis_db") {
		cfg.Settings.RedisDB = v.GetInt("settings.redis_db")
	}
	if v.IsSet("settings.debug") {
		cfg.Settings.Debug = v.GetBool("settings.debug")
	}
	if v.IsSet("capture.max_bytes") {
		cfg.Capture.MaxBytes = v.GetInt64("capture.max_bytes")
	}
	if v.IsSet("capture.timeout") {
		cfg.Capture.Timeout = v.GetDuration("capture.timeout")
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for name, llm := range map[string]LLMConfig{"llm": c.LLM, "embedding": c.EmbedLLM} {
		if llm.Provider != ProviderOpenAI && llm.Provider != ProviderOllama {
			return fmt.Errorf("%s provider must be either '%s' or '%s'", name, ProviderOpenAI, ProviderOllama)
		}
		if llm.Provider == ProviderOllama && llm.Model == "" {
			return fmt.Errorf("%s model is required for the ollama provider", name)
		}
	}

	if c.RAG.TopK < 1 {
		return errors.New("rag top_k must be at least 1")
	}

	if c.Capture.MaxBytes < 0 {
		return errors.New("capture max_bytes cannot be negative")
	}

	switch c.Settings.Backend {
	case BackendFile, BackendSQLite:
		if c.Settings.Path == "" {
			return fmt.Errorf("settings path is required for the %s backend", c.Settings.Backend)
		}
	case BackendPostgres:
		if c.Settings.DSN == "" {
			return errors.New("settings dsn is required for the postgres backend")
		}
	case BackendRedis:
		if c.Settings.RedisAddr == "" {
			return errors.New("settings redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid settings backend: %s", c.Settings.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Log.Level)
	}

	return nil
}
