// Package pipeline chains the stages that turn a company name into a
// published article: market data, news sentiment, input normalization and
// article generation.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/internal/article"
	"github.com/seenimoa/finpress/internal/financial"
	"github.com/seenimoa/finpress/internal/formatter"
	"github.com/seenimoa/finpress/internal/sentiment"
	"github.com/seenimoa/finpress/pkg/models"
)

const previewLen = 160

// Fetcher loads the market snapshot for a company name.
type Fetcher interface {
	FetchWithRetry(ctx context.Context, name string, maxRetries int, delay time.Duration) (*models.FinancialRecord, error)
}

// SentimentAnalyzer scores recent news about a company.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, req sentiment.Request) *models.SentimentRecord
}

// ArticleGenerator writes the article. It never fails.
type ArticleGenerator interface {
	Generate(ctx context.Context, in models.ArticleInput) *models.ArticleRecord
}

// Config holds the stages and the extractor retry policy.
type Config struct {
	Fetcher    Fetcher
	Analyzer   SentimentAnalyzer
	Generator  ArticleGenerator
	MaxRetries int
	RetryDelay time.Duration
}

// Pipeline runs the stages sequentially.
type Pipeline struct {
	fetcher    Fetcher
	analyzer   SentimentAnalyzer
	generator  ArticleGenerator
	maxRetries int
	retryDelay time.Duration
}

// StageTiming records how long a stage took.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// Result is the output of one run.
type Result struct {
	RunID       string                  `json:"run_id"`
	CompanyName string                  `json:"company_name"`
	Symbol      string                  `json:"symbol"`
	Financial   *models.FinancialRecord `json:"financial"`
	Sentiment   *models.SentimentRecord `json:"sentiment"`
	Input       *models.ArticleInput    `json:"article_input"`
	Article     *models.ArticleRecord   `json:"article"`
	Stages      []StageTiming           `json:"stages"`
	StartedAt   time.Time               `json:"started_at"`
}

// New creates a pipeline from cfg.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		fetcher:    cfg.Fetcher,
		analyzer:   cfg.Analyzer,
		generator:  cfg.Generator,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Run executes every stage for company. Only an unknown company (or a
// cancelled context) is reported as an error; the later stages degrade to
// their fallbacks instead of failing.
func (p *Pipeline) Run(ctx context.Context, company string, limit int) (*Result, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, fmt.Errorf("%w: company name is required", formatter.ErrInvalidInput)
	}

	res := &Result{
		RunID:       uuid.NewString(),
		CompanyName: company,
		StartedAt:   time.Now().UTC(),
	}
	var err error
	res.track("financial", func() {
		res.Financial, err = p.fetcher.FetchWithRetry(ctx, company, p.maxRetries, p.retryDelay)
	})
	if err != nil {
		log.Warn().Str("run_id", res.RunID).Str("company", company).Err(err).Msg("pipeline stopped: no market data")
		return nil, err
	}
	res.Symbol = res.Financial.Symbol

	res.track("sentiment", func() {
		res.Sentiment = p.analyzer.Analyze(ctx, sentiment.Request{
			CompanyName: company,
			Limit:       limit,
			Symbol:      res.Symbol,
			Financial:   res.Financial,
		})
	})

	res.track("format", func() {
		res.Input = articleInput(company, res.Symbol, res.Financial, res.Sentiment)
	})

	res.track("article", func() {
		res.Article = p.generator.Generate(ctx, *res.Input)
	})

	log.Info().
		Str("run_id", res.RunID).
		Str("company", company).
		Str("symbol", res.Symbol).
		Str("sentiment", string(res.Sentiment.Sentiment)).
		Str("generated_by", res.Article.GeneratedBy).
		Str("title", res.Article.Title).
		Str("preview", preview(res.Article.Content)).
		Msg("pipeline finished")
	return res, nil
}

func (r *Result) track(stage string, fn func()) {
	start := time.Now()
	fn()
	ms := time.Since(start).Milliseconds()
	r.Stages = append(r.Stages, StageTiming{Stage: stage, DurationMS: ms})
	log.Info().Str("run_id", r.RunID).Str("stage", stage).Int64("duration_ms", ms).Msg("stage complete")
}

// articleInput routes the stage records through the formatter, the same
// normalization applied to external inputs. The records are already well
// formed, so a rejection is only logged.
func articleInput(company, symbol string, fin *models.FinancialRecord, sent *models.SentimentRecord) *models.ArticleInput {
	direct := &models.ArticleInput{
		CompanyName: company,
		Symbol:      symbol,
		Financial:   *fin,
		Sentiment:   *sent,
	}

	data, err := json.Marshal(direct)
	if err == nil {
		var raw map[string]any
		if err = json.Unmarshal(data, &raw); err == nil {
			var in *models.ArticleInput
			if in, err = formatter.Format(raw); err == nil {
				return in
			}
		}
	}
	log.Warn().Str("company", company).Err(err).Msg("formatter rejected stage output, passing records through")
	return direct
}

func preview(content string) string {
	text := []rune(article.PlainText(content))
	if len(text) <= previewLen {
		return string(text)
	}
	return string(text[:previewLen]) + "…"
}

// IsNotFound reports whether err means the company has no market data.
func IsNotFound(err error) bool {
	return errors.Is(err, financial.ErrNotFound)
}
