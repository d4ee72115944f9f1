// Package config handles configuration loading for FinPress.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"       yaml:"llm"`
	News      NewsConfig      `mapstructure:"news"      yaml:"news"`
	Market    MarketConfig    `mapstructure:"market"    yaml:"market"`
	Financial FinancialConfig `mapstructure:"financial" yaml:"financial"`
	Article   ArticleConfig   `mapstructure:"article"   yaml:"article"`
	Prepare   PrepareConfig   `mapstructure:"prepare"   yaml:"prepare"`
	Service   ServiceConfig   `mapstructure:"service"   yaml:"service"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary        string `mapstructure:"primary"         yaml:"primary"` // "gemini", "openai", "ollama", "anthropic"
	GeminiKey      string `mapstructure:"gemini_key"      yaml:"gemini_key"`
	GeminiModel    string `mapstructure:"gemini_model"    yaml:"gemini_model"`
	OpenAIKey      string `mapstructure:"openai_key"      yaml:"openai_key"`
	OpenAIModel    string `mapstructure:"openai_model"    yaml:"openai_model"`
	OllamaURL      string `mapstructure:"ollama_url"      yaml:"ollama_url"` // empty disables Ollama
	OllamaModel    string `mapstructure:"ollama_model"    yaml:"ollama_model"`
	AnthropicKey   string `mapstructure:"anthropic_key"   yaml:"anthropic_key"`
	AnthropicModel string `mapstructure:"anthropic_model" yaml:"anthropic_model"`
	MaxRetries     int    `mapstructure:"max_retries"     yaml:"max_retries"`
}

// NewsConfig holds news retrieval settings.
type NewsConfig struct {
	APIKey   string        `mapstructure:"api_key"  yaml:"api_key"`
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	Language string        `mapstructure:"language" yaml:"language"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"`
	Limit    int           `mapstructure:"limit"    yaml:"limit"`
	Feeds    []string      `mapstructure:"feeds"    yaml:"feeds"`
}

// MarketConfig holds Yahoo Finance client settings.
type MarketConfig struct {
	BaseURL      string        `mapstructure:"base_url"       yaml:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"        yaml:"timeout"`
	RequestsPerS float64       `mapstructure:"requests_per_s" yaml:"requests_per_s"`
}

// FinancialConfig holds extractor retry settings.
type FinancialConfig struct {
	DefaultCompany string        `mapstructure:"default_company" yaml:"default_company"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"     yaml:"retry_delay"`
}

// ArticleConfig holds article generation settings.
type ArticleConfig struct {
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"` // "", "markdown", "html"
}

// PrepareConfig holds the default paths of the prepare tool.
type PrepareConfig struct {
	InputFile  string `mapstructure:"input_file"  yaml:"input_file"`
	OutputFile string `mapstructure:"output_file" yaml:"output_file"`
}

// ServiceConfig holds long-running mode settings.
type ServiceConfig struct {
	HeartbeatSpec  string `mapstructure:"heartbeat_spec"  yaml:"heartbeat_spec"`
	HeartbeatEvery int    `mapstructure:"heartbeat_every" yaml:"heartbeat_every"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled"      yaml:"enabled"`
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.finpress/config.yaml (home directory)
//  3. /etc/finpress/config.yaml (system)
//
// Environment variables override config file values.
// Format: FINPRESS_<SECTION>_<KEY>, e.g., FINPRESS_LLM_GEMINI_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".finpress"))
	v.AddConfigPath("/etc/finpress")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FINPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "gemini")
	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.ollama_url", "")
	v.SetDefault("llm.ollama_model", "qwen2.5:7b")
	v.SetDefault("llm.anthropic_model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.max_retries", 1)

	// News defaults
	v.SetDefault("news.base_url", "https://newsapi.org/v2")
	v.SetDefault("news.language", "pt")
	v.SetDefault("news.timeout", 10*time.Second)
	v.SetDefault("news.limit", 20)
	v.SetDefault("news.feeds", []string{})

	// Market data defaults
	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.timeout", 30*time.Second)
	v.SetDefault("market.requests_per_s", 2.0)

	// Financial extractor defaults
	v.SetDefault("financial.default_company", "Petrobras")
	v.SetDefault("financial.max_retries", 3)
	v.SetDefault("financial.retry_delay", 5*time.Second)

	// Article defaults
	v.SetDefault("article.output_format", "")

	// Prepare tool defaults
	v.SetDefault("prepare.input_file", "input.json")
	v.SetDefault("prepare.output_file", "prepared_output.json")

	// Long-running mode defaults
	v.SetDefault("service.heartbeat_spec", "@every 1m")
	v.SetDefault("service.heartbeat_every", 10)

	// API defaults
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv reads secrets and the plain variable names used by the
// standalone agent scripts (GEMINI_API_KEY, NEWS_API_KEY, ...).
func overrideFromEnv(cfg *Config) {
	overrides := []struct {
		dst  *string
		vars []string
	}{
		{&cfg.LLM.GeminiKey, []string{"FINPRESS_LLM_GEMINI_KEY", "GEMINI_API_KEY"}},
		{&cfg.LLM.GeminiModel, []string{"FINPRESS_LLM_GEMINI_MODEL", "GEMINI_MODEL"}},
		{&cfg.LLM.OpenAIKey, []string{"FINPRESS_LLM_OPENAI_KEY", "OPENAI_API_KEY"}},
		{&cfg.LLM.AnthropicKey, []string{"FINPRESS_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"}},
		{&cfg.LLM.OllamaURL, []string{"FINPRESS_LLM_OLLAMA_URL", "OLLAMA_URL"}},
		{&cfg.News.APIKey, []string{"FINPRESS_NEWS_API_KEY", "NEWS_API_KEY"}},
		{&cfg.Prepare.InputFile, []string{"FINPRESS_PREPARE_INPUT_FILE", "INPUT_FILE"}},
		{&cfg.Prepare.OutputFile, []string{"FINPRESS_PREPARE_OUTPUT_FILE", "OUTPUT_FILE"}},
	}
	for _, o := range overrides {
		for _, name := range o.vars {
			if val := os.Getenv(name); val != "" {
				*o.dst = val
				break
			}
		}
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
