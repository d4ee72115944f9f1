package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var openAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-3.5-turbo",
}

// OpenAIProvider implements LLMProvider for OpenAI and any server speaking
// the same chat-completions protocol (Ollama, vLLM, LiteLLM).
type OpenAIProvider struct {
	name    string
	client  *openai.Client
	model   string
	baseURL string
	http    *http.Client
	models  []string
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIBaseURL sets a custom API base URL (for Azure, proxies, etc.).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = strings.TrimSuffix(url, "/") }
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.model = model }
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.http = client }
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &OpenAIProvider{
		name:   ProviderOpenAI,
		model:  "gpt-4o-mini",
		models: openAIModels,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClientWithConfig(p.clientConfig(apiKey))
	return p, nil
}

// NewOllamaProvider creates a provider for a local Ollama server through its
// OpenAI-compatible /v1 endpoint. No API key is required.
func NewOllamaProvider(baseURL, model string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ollama: %w: base URL is empty", ErrProviderDown)
	}
	if model == "" {
		model = "qwen2.5:7b"
	}
	p := &OpenAIProvider{
		name:    ProviderOllama,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/") + "/v1",
		models:  []string{model},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClientWithConfig(p.clientConfig("ollama"))
	return p, nil
}

func (p *OpenAIProvider) clientConfig(apiKey string) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	if p.http != nil {
		cfg.HTTPClient = p.http
	}
	return cfg
}

func (p *OpenAIProvider) Name() string     { return p.name }
func (p *OpenAIProvider) Models() []string { return p.models }

// Ping lists models to verify connectivity and credentials.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProviderDown, p.name, err)
	}
	return nil
}

// Chat sends a non-streaming chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := resolveModel(opts, p.model)

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertToOpenAIMessages(messages),
	}
	if opts != nil {
		req.Temperature = float32(opts.Temperature)
		req.TopP = float32(opts.TopP)
		req.MaxTokens = opts.MaxTokens
		req.Stop = opts.Stop
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.mapError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: mapFinishReason(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:    resp.Model,
		Provider: p.name,
		Latency:  time.Since(start),
	}, nil
}

func (p *OpenAIProvider) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %s", p.name, ErrNoAPIKey, apiErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %s", p.name, ErrRateLimit, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %s", p.name, ErrInvalidModel, apiErr.Message)
		}
		return fmt.Errorf("%s: API error %d: %s", p.name, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%s: %w", p.name, err)
}

func convertToOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func mapFinishReason(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonLength:
		return FinishLength
	case openai.FinishReasonStop, "":
		return FinishStop
	default:
		return FinishReason(reason)
	}
}
