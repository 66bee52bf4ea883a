package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM         LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Anthropic   AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Render      RenderConfig    `yaml:"render" mapstructure:"render"`
	History     HistoryConfig   `yaml:"history" mapstructure:"history"`
	Batch       BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Competitors []string        `yaml:"competitors" mapstructure:"competitors"`
	Server      ServerConfig    `yaml:"server" mapstructure:"server"`
	Log         LogConfig       `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the OpenAI-compatible analysis endpoint.
type LLMConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // openrouter | anthropic
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	TextModel         string        `yaml:"text_model" mapstructure:"text_model"`
	VisionModel       string        `yaml:"vision_model" mapstructure:"vision_model"`
	Temperature       float64       `yaml:"temperature" mapstructure:"temperature"`
	Language          string        `yaml:"language" mapstructure:"language"`
	TimeoutSecs       int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	AppName           string        `yaml:"app_name" mapstructure:"app_name"`
	Retry             RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker           BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
	Pricing           []ModelPrice  `yaml:"pricing" mapstructure:"pricing"`
}

// ModelPrice overrides the built-in token pricing for one model, in USD per
// million tokens. A list rather than a map because model IDs contain dots.
type ModelPrice struct {
	Model  string  `yaml:"model" mapstructure:"model"`
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// RetryConfig bounds retries of transient endpoint failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the circuit breaker around the endpoint.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// AnthropicConfig holds Anthropic API settings, used when llm.provider is
// "anthropic".
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TextModel   string `yaml:"text_model" mapstructure:"text_model"`
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RenderConfig configures page rendering.
type RenderConfig struct {
	Engine         string `yaml:"engine" mapstructure:"engine"` // rod | http | auto
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SettleMs       int    `yaml:"settle_ms" mapstructure:"settle_ms"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	RemoteURL      string `yaml:"remote_url" mapstructure:"remote_url"`
	BrowserBin     string `yaml:"browser_bin" mapstructure:"browser_bin"`
	NoSandbox      bool   `yaml:"no_sandbox" mapstructure:"no_sandbox"`
	ViewportWidth  int    `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" mapstructure:"viewport_height"`
	JPEGQuality    int    `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
	MaxConcurrent  int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// HistoryConfig configures the optional analysis history.
type HistoryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory | sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxItems    int    `yaml:"max_items" mapstructure:"max_items"`
}

// BatchConfig configures multi-URL runs.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the per-request endpoint timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the whole-render budget.
func (c RenderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Settle returns the post-load idle wait.
func (c RenderConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}

// legacyEnv maps keys to the env names older deployments used.
var legacyEnv = map[string]string{
	"llm.api_key":      "OPENROUTER_API_KEY",
	"llm.text_model":   "OPENAI_MODEL",
	"llm.vision_model": "OPENAI_VISION_MODEL",
	"anthropic.key":    "ANTHROPIC_API_KEY",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPETITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "COMPETITOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("llm.provider", "openrouter")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.text_model", "google/gemini-2.5-flash-lite-preview-09-2025")
	v.SetDefault("llm.vision_model", "google/gemini-3-pro-image-preview")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.language", "Russian")
	v.SetDefault("llm.timeout_secs", 90)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.app_name", "competitor-monitor")
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.initial_backoff_ms", 1000)
	v.SetDefault("llm.retry.max_backoff_ms", 20000)
	v.SetDefault("llm.breaker.failure_threshold", 5)
	v.SetDefault("llm.breaker.cooldown_secs", 30)
	v.SetDefault("anthropic.text_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("render.engine", "auto")
	v.SetDefault("render.timeout_secs", 10)
	v.SetDefault("render.settle_ms", 1500)
	v.SetDefault("render.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("render.viewport_width", 1920)
	v.SetDefault("render.viewport_height", 1080)
	v.SetDefault("render.jpeg_quality", 80)
	v.SetDefault("render.max_concurrent", 2)
	v.SetDefault("history.driver", "memory")
	v.SetDefault("history.max_items", 10)
	v.SetDefault("batch.max_concurrent", 3)
	v.SetDefault("competitors", []string{
		"https://kitovybereg.ru",
		"https://altay.lesimore.com",
		"https://scala-kabardinka.ru",
	})
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the given command needs. Modes: analyze,
// text, image, history, export, serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	needsLLM := false
	switch mode {
	case "analyze", "text", "image":
		needsLLM = true
	case "serve":
		needsLLM = true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "history", "export":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsLLM {
		switch c.LLM.Provider {
		case "openrouter", "":
			if c.LLM.APIKey == "" {
				errs = append(errs, "llm.api_key is required (or OPENROUTER_API_KEY)")
			}
			if c.LLM.BaseURL == "" {
				errs = append(errs, "llm.base_url is required")
			}
			if c.LLM.TextModel == "" || c.LLM.VisionModel == "" {
				errs = append(errs, "llm.text_model and llm.vision_model are required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required when llm.provider is anthropic")
			}
		default:
			errs = append(errs, fmt.Sprintf("llm.provider %q is not supported (openrouter, anthropic)", c.LLM.Provider))
		}
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			errs = append(errs, "llm.temperature must be between 0 and 2")
		}
	}

	if mode == "analyze" || mode == "serve" {
		switch c.Render.Engine {
		case "rod", "http", "auto", "":
		default:
			errs = append(errs, fmt.Sprintf("render.engine %q is not supported (rod, http, auto)", c.Render.Engine))
		}
		if c.Render.TimeoutSecs <= 0 {
			errs = append(errs, "render.timeout_secs must be > 0")
		}
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 20 {
			errs = append(errs, "batch.max_concurrent must be between 1 and 20")
		}
	}

	switch c.History.Driver {
	case "memory", "":
	case "sqlite", "postgres":
		if c.History.DatabaseURL == "" {
			errs = append(errs, fmt.Sprintf("history.database_url is required for the %s driver", c.History.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("history.driver %q is not supported (memory, sqlite, postgres)", c.History.Driver))
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// MaskKey hides all but the last four characters of a secret.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
