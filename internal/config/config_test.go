package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secretEnvVars = []string{
	"FINPRESS_LLM_GEMINI_KEY", "GEMINI_API_KEY",
	"FINPRESS_LLM_GEMINI_MODEL", "GEMINI_MODEL",
	"FINPRESS_LLM_OPENAI_KEY", "OPENAI_API_KEY",
	"FINPRESS_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY",
	"FINPRESS_LLM_OLLAMA_URL", "OLLAMA_URL",
	"FINPRESS_NEWS_API_KEY", "NEWS_API_KEY",
	"FINPRESS_PREPARE_INPUT_FILE", "INPUT_FILE",
	"FINPRESS_PREPARE_OUTPUT_FILE", "OUTPUT_FILE",
}

// clearEnv blanks every variable overrideFromEnv reads for the test's duration.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, e := range secretEnvVars {
		t.Setenv(e, "")
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	// LLM defaults
	assert.Equal(t, "gemini", cfg.LLM.Primary)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.GeminiModel)
	assert.Empty(t, cfg.LLM.OllamaURL, "Ollama is disabled by default")

	// News defaults
	assert.Equal(t, "pt", cfg.News.Language)
	assert.Equal(t, 10*time.Second, cfg.News.Timeout)
	assert.Equal(t, 20, cfg.News.Limit)
	assert.Empty(t, cfg.News.Feeds)

	// Financial defaults
	assert.Equal(t, "Petrobras", cfg.Financial.DefaultCompany)
	assert.Equal(t, 3, cfg.Financial.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Financial.RetryDelay)

	// Prepare defaults
	assert.Equal(t, PrepareConfig{InputFile: "input.json", OutputFile: "prepared_output.json"}, cfg.Prepare)

	// Service defaults
	assert.Equal(t, ServiceConfig{HeartbeatSpec: "@every 1m", HeartbeatEvery: 10}, cfg.Service)

	// API defaults
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, 8080, cfg.API.Port)

	// Logging defaults
	assert.Equal(t, LoggingConfig{Level: "info", Format: "text"}, cfg.Logging)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	cfgPath := filepath.Join(t.TempDir(), "finpress.yaml")
	content := []byte(`
llm:
  primary: openai
  openai_key: sk-file-key-0001
news:
  limit: 5
  feeds:
    - https://example.com/rss
financial:
  max_retries: 1
  retry_delay: 250ms
logging:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))

	cfg, err := LoadFromFile(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Primary)
	assert.Equal(t, "sk-file-key-0001", cfg.LLM.OpenAIKey)
	assert.Equal(t, 5, cfg.News.Limit)
	assert.Equal(t, []string{"https://example.com/rss"}, cfg.News.Feeds)
	assert.Equal(t, 1, cfg.Financial.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Financial.RetryDelay)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "pt", cfg.News.Language, "unset values keep their defaults")
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/finpress.yaml")
	assert.Error(t, err)
}

// ── overrideFromEnv ──

func TestOverrideFromEnvPrefixed(t *testing.T) {
	clearEnv(t)
	t.Setenv("FINPRESS_LLM_GEMINI_KEY", "gemini-prefixed-key")
	t.Setenv("FINPRESS_NEWS_API_KEY", "news-prefixed-key")

	cfg := &Config{}
	overrideFromEnv(cfg)

	assert.Equal(t, "gemini-prefixed-key", cfg.LLM.GeminiKey)
	assert.Equal(t, "news-prefixed-key", cfg.News.APIKey)
}

func TestOverrideFromEnvPlainNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-plain-key")
	t.Setenv("GEMINI_MODEL", "gemini-pro")
	t.Setenv("NEWS_API_KEY", "news-plain-key")
	t.Setenv("INPUT_FILE", "in.yaml")
	t.Setenv("OUTPUT_FILE", "out.json")

	cfg := &Config{}
	overrideFromEnv(cfg)

	assert.Equal(t, "gemini-plain-key", cfg.LLM.GeminiKey)
	assert.Equal(t, "gemini-pro", cfg.LLM.GeminiModel)
	assert.Equal(t, "news-plain-key", cfg.News.APIKey)
	assert.Equal(t, PrepareConfig{InputFile: "in.yaml", OutputFile: "out.json"}, cfg.Prepare)
}

func TestOverrideFromEnvPrefixedWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("FINPRESS_LLM_GEMINI_KEY", "prefixed")
	t.Setenv("GEMINI_API_KEY", "plain")

	cfg := &Config{}
	overrideFromEnv(cfg)

	assert.Equal(t, "prefixed", cfg.LLM.GeminiKey)
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	clearEnv(t)

	cfg := &Config{LLM: LLMConfig{OpenAIKey: "from-config"}}
	overrideFromEnv(cfg)

	assert.Equal(t, "from-config", cfg.LLM.OpenAIKey, "unset env leaves config values alone")
}

// ── maskKey / KeyPrefix ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"abcd", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"AIzaSyD-long-gemini-key", "AIz...key"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, maskKey(tc.input), "maskKey(%q)", tc.input)
	}
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "AIzaSyD-lo...", KeyPrefix("AIzaSyD-long-gemini-key", 10))
	assert.Empty(t, KeyPrefix("", 10))
	assert.Equal(t, "***", KeyPrefix("short", 10))
}

// ── CheckAPIKeys ──

func TestCheckAPIKeysAllEmpty(t *testing.T) {
	clearEnv(t)

	statuses := CheckAPIKeys(&Config{})
	require.Len(t, statuses, 4)
	for _, s := range statuses {
		assert.False(t, s.IsSet, s.Name)
		assert.Equal(t, KeySourceNone, s.Source, s.Name)
		assert.Empty(t, s.Masked, s.Name)
	}
}

func TestCheckAPIKeysSources(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEWS_API_KEY", "news-key-from-env")

	cfg := &Config{}
	cfg.LLM.GeminiKey = "gemini-key-from-config"
	cfg.News.APIKey = "news-key-from-env"

	byName := map[string]KeyStatus{}
	for _, s := range CheckAPIKeys(cfg) {
		byName[s.Name] = s
	}

	gemini := byName["Gemini API Key"]
	assert.True(t, gemini.IsSet)
	assert.Equal(t, KeySourceConfig, gemini.Source)
	assert.Equal(t, "gem...fig", gemini.Masked)

	news := byName["News API Key"]
	assert.True(t, news.IsSet)
	assert.Equal(t, KeySourceEnv, news.Source)

	assert.False(t, byName["OpenAI API Key"].IsSet)
}

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	assert.NotEmpty(t, homeDir())
}
