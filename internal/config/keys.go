package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "AIz...xyz"
}

// CheckAPIKeys returns the status of every key the pipeline can use.
// None of them is required: a missing key selects a fallback path.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("Gemini API Key", cfg.LLM.GeminiKey, "FINPRESS_LLM_GEMINI_KEY", "GEMINI_API_KEY"),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "FINPRESS_LLM_OPENAI_KEY", "OPENAI_API_KEY"),
		checkKey("Anthropic API Key", cfg.LLM.AnthropicKey, "FINPRESS_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"),
		checkKey("News API Key", cfg.News.APIKey, "FINPRESS_NEWS_API_KEY", "NEWS_API_KEY"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}

	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) != "" {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// KeyPrefix returns the first n characters of key followed by "...",
// the form used by the service availability report.
func KeyPrefix(key string, n int) string {
	if key == "" {
		return ""
	}
	if len(key) <= n {
		return maskKey(key)
	}
	return key[:n] + "..."
}
