package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/finpress/internal/config"
)

// ── provider.go: Types & Helpers ──

func TestMessageConstructors(t *testing.T) {
	assert.Equal(t, Message{Role: RoleSystem, Content: "Você é um jornalista financeiro."},
		SystemMessage("Você é um jornalista financeiro."))
	assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, UserMessage("hello"))
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hi there"}, AssistantMessage("hi there"))
}

func TestResponseString(t *testing.T) {
	r := &Response{
		Provider: "openai", Model: "gpt-4o",
		Content: "short answer",
		Usage:   Usage{TotalTokens: 50},
		Latency: 100 * time.Millisecond,
	}
	s := r.String()
	assert.Contains(t, s, "openai/gpt-4o")
	assert.Contains(t, s, "50 tokens")

	r.Content = strings.Repeat("x", 200)
	assert.Contains(t, r.String(), "...", "long content should be truncated")
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]Message{
		SystemMessage("a"),
		UserMessage("q"),
		SystemMessage("b"),
	})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, turns, 1)
	assert.Equal(t, RoleUser, turns[0].Role)
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "base", resolveModel(nil, "base"))
	assert.Equal(t, "base", resolveModel(&ChatOptions{}, "base"))
	assert.Equal(t, "other", resolveModel(&ChatOptions{Model: "other"}, "base"))
}

// ── openai.go: OpenAI & Ollama ──

func TestOpenAIProviderNew(t *testing.T) {
	_, err := NewOpenAIProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewOpenAIProvider("sk-test", WithOpenAIModel("gpt-4o"))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
	assert.Equal(t, "gpt-4o", p.model)
	assert.NotEmpty(t, p.Models(), "expected well-known models")
}

func newMockOpenAIServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func TestOpenAIChat(t *testing.T) {
	server := newMockOpenAIServer(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "gpt-4o", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
		}
		assert.Equal(t, 3072, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-123",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Petrobras sobe 2%"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
		}`)
	})
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL), WithOpenAIModel("gpt-4o"))
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Você é um analista."), UserMessage("Como está a PETR4?")},
		&ChatOptions{Temperature: 0.6, MaxTokens: 3072})
	require.NoError(t, err)

	assert.Equal(t, "Petrobras sobe 2%", resp.Content)
	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	assert.Equal(t, FinishStop, resp.FinishReason)
}

func TestOpenAIErrorHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrNoAPIKey},
		{"rate limit", http.StatusTooManyRequests, ErrRateLimit},
		{"not found", http.StatusNotFound, ErrInvalidModel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := newMockOpenAIServer(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error": {"message": "boom", "type": "invalid_request_error"}}`)
			})
			defer server.Close()

			p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
			_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	server := newMockOpenAIServer(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "x", "choices": []}`)
	})
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIPing(t *testing.T) {
	server := newMockOpenAIServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object": "list", "data": [{"id": "gpt-4o", "object": "model"}]}`)
	})
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	assert.NoError(t, p.Ping(context.Background()))
}

func TestOllamaProvider(t *testing.T) {
	_, err := NewOllamaProvider("", "qwen2.5:7b")
	assert.Error(t, err, "empty base URL")

	server := newMockOpenAIServer(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "o1", "model": "qwen2.5:7b", "choices": [{"message": {"role": "assistant", "content": "olá"}, "finish_reason": "length"}]}`)
	})
	defer server.Close()

	p, err := NewOllamaProvider(server.URL+"/", "")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())
	assert.Equal(t, "qwen2.5:7b", p.model)

	resp, err := p.Chat(context.Background(), []Message{UserMessage("oi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "olá", resp.Content)
	assert.Equal(t, ProviderOllama, resp.Provider)
	assert.Equal(t, FinishLength, resp.FinishReason)
}

// ── gemini.go: Gemini ──

func TestGeminiProviderNew(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewGeminiProvider(context.Background(), "AIza-test", WithGeminiModel("gemini-1.5-pro"))
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())
	assert.Equal(t, "gemini-1.5-pro", p.model)
}

func TestGeminiChat(t *testing.T) {
	var gotSystem atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["systemInstruction"]; ok {
			gotSystem.Store(true)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"title\": \"t\"}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 8, "totalTokenCount": 20}
		}`)
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), "AIza-test", WithGeminiBaseURL(server.URL))
	require.NoError(t, err)
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Responda em JSON."), UserMessage("Gere um título")},
		&ChatOptions{Temperature: 0.4, MaxTokens: 3072})
	require.NoError(t, err)

	assert.Equal(t, `{"title": "t"}`, resp.Content)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, ProviderGemini, resp.Provider)
	assert.True(t, gotSystem.Load(), "system instruction was not sent")
}

func TestGeminiUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}}`)
	}))
	defer server.Close()

	p, _ := NewGeminiProvider(context.Background(), "AIza-bad", WithGeminiBaseURL(server.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

// ── anthropic.go: Anthropic ──

func TestAnthropicProviderNew(t *testing.T) {
	_, err := NewAnthropicProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewAnthropicProvider("sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())
	assert.Equal(t, "claude-sonnet-4-20250514", p.model)
}

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		var req struct {
			MaxTokens int `json:"max_tokens"`
			System    []struct {
				Text string `json:"text"`
			} `json:"system"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, 1024, req.MaxTokens)
		if assert.Len(t, req.System, 1) {
			assert.Equal(t, "Seja conciso.", req.System[0].Text)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Mercado em alta."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 15, "output_tokens": 5}
		}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test", WithAnthropicBaseURL(server.URL))
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Seja conciso."), UserMessage("Resumo?")},
		&ChatOptions{MaxTokens: 1024})
	require.NoError(t, err)

	assert.Equal(t, "Mercado em alta.", resp.Content)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, FinishStop, resp.FinishReason)
}

func TestMapAnthropicStopReason(t *testing.T) {
	assert.Equal(t, FinishLength, mapAnthropicStopReason("max_tokens"))
	assert.Equal(t, FinishStop, mapAnthropicStopReason("end_turn"))
}

// ── router.go: Router tests ──

// mockProvider implements LLMProvider for testing the router.
type mockProvider struct {
	name     string
	chatFunc func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)
	pingErr  error
}

func (m *mockProvider) Name() string                   { return m.name }
func (m *mockProvider) Models() []string               { return []string{"mock-model"} }
func (m *mockProvider) Ping(ctx context.Context) error { return m.pingErr }
func (m *mockProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, messages, opts)
	}
	return &Response{Content: "mock response", Provider: m.name}, nil
}

func TestRouterBasic(t *testing.T) {
	r := NewRouter("primary")
	r.RegisterProvider(&mockProvider{name: "primary"})

	p, err := r.Primary()
	require.NoError(t, err)
	assert.Equal(t, "primary", p.Name())
	assert.Equal(t, []string{"primary"}, r.ProviderNames())
	assert.Equal(t, "router/primary", r.Name())
}

func TestRouterChat(t *testing.T) {
	r := NewRouter("main")
	r.RegisterProvider(&mockProvider{
		name: "main",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			return &Response{Content: "from main", Provider: "main"}, nil
		},
	})

	resp, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from main", resp.Content)
}

func TestRouterFallback(t *testing.T) {
	callCount := 0
	r := NewRouter("primary",
		WithFallbacks("backup"),
		WithMaxRetries(0),
	)
	r.RegisterProvider(&mockProvider{
		name: "primary",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			callCount++
			return nil, fmt.Errorf("%w: primary down", ErrProviderDown)
		},
	})
	r.RegisterProvider(&mockProvider{
		name: "backup",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			callCount++
			return &Response{Content: "from backup", Provider: "backup"}, nil
		},
	})

	resp, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Equal(t, "backup", resp.Provider)
	assert.Equal(t, 2, callCount, "primary + backup")
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter("a",
		WithFallbacks("b"),
		WithMaxRetries(0),
	)
	for _, name := range []string{"a", "b"} {
		r.RegisterProvider(&mockProvider{
			name: name,
			chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
				return nil, fmt.Errorf("%w: %s down", ErrProviderDown, name)
			},
		})
	}

	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderDown)
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("ghost")
	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	assert.ErrorIs(t, err, ErrNoProviders)

	_, err = r.Primary()
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestRouterRetry(t *testing.T) {
	calls := 0
	r := NewRouter("flaky", WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(&mockProvider{
		name: "flaky",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			calls++
			if calls < 3 {
				return nil, ErrRateLimit
			}
			return &Response{Content: "ok"}, nil
		},
	})

	resp, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestRouterNonRetryableError(t *testing.T) {
	calls := 0
	r := NewRouter("main", WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(&mockProvider{
		name: "main",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			calls++
			return nil, fmt.Errorf("main: %w", ErrNoAPIKey)
		},
	})

	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, 1, calls, "non-retryable error should not be retried")
}

func TestRouterContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRouter("a", WithFallbacks("b"), WithMaxRetries(0))
	r.RegisterProvider(&mockProvider{
		name: "a",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			cancel()
			return nil, ctx.Err()
		},
	})
	r.RegisterProvider(&mockProvider{name: "b"})

	_, err := r.Chat(ctx, []Message{UserMessage("test")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouterHealthCheck(t *testing.T) {
	r := NewRouter("ok")
	r.RegisterProvider(&mockProvider{name: "ok"})
	r.RegisterProvider(&mockProvider{name: "down", pingErr: ErrProviderDown})

	results := r.HealthCheck(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results["ok"])
	assert.ErrorIs(t, results["down"], ErrProviderDown)
}

func TestIsNonRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimit, false},
		{ErrProviderDown, false},
		{fmt.Errorf("x: %w", ErrNoAPIKey), true},
		{ErrInvalidModel, true},
		{ErrEmptyResponse, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, isNonRetryable(tc.err), "isNonRetryable(%v)", tc.err)
	}
}

// ── NewRouterFromConfig ──

func TestNewRouterFromConfigNoKeys(t *testing.T) {
	_, err := NewRouterFromConfig(context.Background(), &config.Config{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestNewRouterFromConfigPrimaryFallsBack(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Primary = ProviderGemini
	cfg.LLM.OpenAIKey = "sk-test"
	cfg.LLM.OllamaURL = "http://localhost:11434"

	r, err := NewRouterFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	p, err := r.Primary()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name(), "primary falls back to the first registered provider")

	chain := r.providerChain()
	require.Len(t, chain, 2)
	assert.Equal(t, ProviderOllama, chain[1])
}

func TestNewRouterFromConfigAllProviders(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Primary = ProviderAnthropic
	cfg.LLM.GeminiKey = "AIza-test"
	cfg.LLM.OpenAIKey = "sk-test"
	cfg.LLM.AnthropicKey = "sk-ant-test"

	r, err := NewRouterFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{ProviderAnthropic, ProviderGemini, ProviderOpenAI}, r.providerChain())
}

// ── extract.go: JSON extraction ──

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"bare object", `{"title":"x"}`, `{"title":"x"}`, true},
		{"json fence", "```json\n{\"title\":\"x\"}\n```", `{"title":"x"}`, true},
		{"plain fence", "```\n{\"a\":{\"b\":1}}\n```", `{"a":{"b":1}}`, true},
		{"surrounding prose", "Aqui está:\n{\"a\":1}\nObrigado.", `{"a":1}`, true},
		{"no object", "sem json aqui", "", false},
		{"reversed braces", "} {", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.input)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "texto", StripCodeFence("  texto  "))
	assert.Equal(t, "<p>oi</p>", StripCodeFence("```html\n<p>oi</p>\n```"))
}
