// Package article writes the Portuguese market article for a company from
// its financial and sentiment records.
package article

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/internal/llm"
	"github.com/seenimoa/finpress/pkg/models"
)

// ErrMalformedResponse is returned when the model output lacks a title or
// content.
var ErrMalformedResponse = errors.New("article: malformed model response")

// Title and content of the error record.
const (
	ErrorTitle   = "Erro ao gerar artigo"
	errorContent = "Não foi possível gerar o artigo neste momento. Tente novamente mais tarde."
)

const (
	llmTemperature = 0.6
	llmMaxTokens   = 3072
)

// Output formats accepted by WithOutputFormat.
const (
	FormatNative   = ""
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Generator produces articles.
type Generator struct {
	llm    llm.LLMProvider
	format string
	now    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLLM enables the model-written path.
func WithLLM(p llm.LLMProvider) Option {
	return func(g *Generator) { g.llm = p }
}

// WithOutputFormat converts every article to markdown or html. The empty
// format keeps each path's native format.
func WithOutputFormat(format string) Option {
	return func(g *Generator) { g.format = strings.ToLower(strings.TrimSpace(format)) }
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate always returns a record. Failures produce the error record
// instead of an error value.
func (g *Generator) Generate(ctx context.Context, in models.ArticleInput) (rec *models.ArticleRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("company", in.CompanyName).Str("panic", fmt.Sprint(r)).Msg("article generation panicked")
			rec = g.errorRecord(in, fmt.Errorf("%v", r))
		}
	}()

	if in.Symbol == "" {
		in.Symbol = in.CompanyName
	}

	rec = g.generate(ctx, &in)
	if err := Render(rec, g.format); err != nil {
		log.Warn().Str("format", g.format).Err(err).Msg("article conversion failed, keeping native format")
	}
	return rec
}

func (g *Generator) generate(ctx context.Context, in *models.ArticleInput) *models.ArticleRecord {
	if g.llm != nil {
		rec, err := g.generateWithLLM(ctx, in)
		if err == nil {
			return rec
		}
		if ctx.Err() != nil {
			return g.errorRecord(*in, ctx.Err())
		}
		log.Warn().Str("company", in.CompanyName).Err(err).Msg("llm article failed, using template")
	}

	title, content := templateArticle(in)
	return &models.ArticleRecord{
		Title:       title,
		Content:     content,
		Symbol:      in.Symbol,
		GeneratedBy: models.GeneratedByTemplate,
		GeneratedAt: g.now().UTC(),
	}
}

func (g *Generator) generateWithLLM(ctx context.Context, in *models.ArticleInput) (*models.ArticleRecord, error) {
	prompt, err := BuildPrompt(in)
	if err != nil {
		return nil, fmt.Errorf("article: build prompt: %w", err)
	}
	resp, err := g.llm.Chat(ctx, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(prompt),
	}, &llm.ChatOptions{Temperature: llmTemperature, MaxTokens: llmMaxTokens})
	if err != nil {
		return nil, err
	}

	rec := &models.ArticleRecord{
		Symbol:      in.Symbol,
		GeneratedBy: models.GeneratedByLLM,
		GeneratedAt: g.now().UTC(),
	}
	title, content, err := ParseResponse(resp.Content)
	if err != nil {
		log.Warn().Str("company", in.CompanyName).Err(err).Msg("unparseable article response, using raw text")
		if strings.TrimSpace(resp.Content) == "" {
			return nil, err
		}
		rec.Title = Title(in.Symbol, &in.Financial)
		rec.Content = resp.Content + "\n\n---\n\n" + LLMDisclaimer
		return rec, nil
	}
	rec.Title = title
	rec.Content = content + "\n\n<hr>\n\n<p>" + strings.Trim(LLMDisclaimer, "*") + "</p>"
	return rec, nil
}

// ParseResponse extracts the title and content the model was asked for.
func ParseResponse(content string) (title, body string, err error) {
	raw, ok := llm.ExtractJSON(content)
	if !ok {
		return "", "", ErrMalformedResponse
	}
	var out struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(out.Title) == "" || strings.TrimSpace(out.Content) == "" {
		return "", "", fmt.Errorf("%w: missing title or content", ErrMalformedResponse)
	}
	return out.Title, out.Content, nil
}

func (g *Generator) errorRecord(in models.ArticleInput, err error) *models.ArticleRecord {
	return ErrorRecord(err, in.Symbol, g.now().UTC())
}

// ErrorRecord is the record returned when generation fails.
func ErrorRecord(err error, symbol string, at time.Time) *models.ArticleRecord {
	return &models.ArticleRecord{
		Title:       ErrorTitle,
		Content:     errorContent,
		Error:       err.Error(),
		Symbol:      symbol,
		GeneratedBy: models.GeneratedByError,
		GeneratedAt: at,
	}
}
