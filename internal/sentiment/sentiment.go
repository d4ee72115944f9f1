// Package sentiment gathers recent news about a company and scores the
// market mood, through an LLM when one is configured and a Portuguese
// keyword model otherwise.
package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/internal/llm"
	"github.com/seenimoa/finpress/pkg/models"
)

// ErrMalformedResponse is returned when the model output holds no usable JSON.
var ErrMalformedResponse = errors.New("sentiment: malformed model response")

// DefaultLimit is the number of news items requested when none is given.
const DefaultLimit = 20

// Generation settings for the LLM path.
const (
	llmTemperature = 0.4
	llmMaxTokens   = 3072
)

// NewsSearcher returns recent news about a company. *datasource.NewsChain
// implements it.
type NewsSearcher interface {
	Search(ctx context.Context, company string, limit int) ([]models.NewsItem, error)
}

// Request describes one analysis.
type Request struct {
	CompanyName string
	Limit       int
	Symbol      string
	Financial   *models.FinancialRecord
}

func (r Request) symbol() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	return r.CompanyName
}

// Analyzer runs the sentiment stage.
type Analyzer struct {
	news NewsSearcher
	llm  llm.LLMProvider
	now  func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLLM enables the LLM path.
func WithLLM(p llm.LLMProvider) Option {
	return func(a *Analyzer) { a.llm = p }
}

// New creates an analyzer over the given news source.
func New(news NewsSearcher, opts ...Option) *Analyzer {
	a := &Analyzer{news: news, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze never fails: any LLM problem falls back to keyword scoring, and a
// news failure yields the neutral default record.
func (a *Analyzer) Analyze(ctx context.Context, req Request) *models.SentimentRecord {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	news, err := a.news.Search(ctx, req.CompanyName, req.Limit)
	if err != nil {
		log.Warn().Str("company", req.CompanyName).Err(err).Msg("news search failed")
		news = nil
	}

	var rec models.SentimentRecord
	path := models.PathKeyword
	if a.llm != nil && len(news) > 0 {
		if r, err := a.analyzeWithLLM(ctx, req, news); err != nil {
			log.Warn().Str("company", req.CompanyName).Err(err).Msg("llm sentiment failed, using keyword analysis")
		} else {
			rec = *r
			path = models.PathLLM
		}
	}
	if path == models.PathKeyword {
		rec = scoreKeywords(news)
	}

	rec.CompanyName = req.CompanyName
	rec.Symbol = req.symbol()
	rec.AnalyzedAt = a.now().UTC()
	rec.SourcePath = path
	if news == nil {
		news = []models.NewsItem{}
	}
	rec.RawData = &models.SentimentRawData{Articles: news, Analysis: analysisBlock(rec.Insights)}

	log.Info().Str("company", req.CompanyName).Str("path", path).Str("sentiment", string(rec.Sentiment)).
		Float64("score", rec.Score).Int("news", len(news)).Msg("sentiment analyzed")
	return &rec
}

func (a *Analyzer) analyzeWithLLM(ctx context.Context, req Request, news []models.NewsItem) (*models.SentimentRecord, error) {
	prompt, err := buildPrompt(req, news)
	if err != nil {
		return nil, fmt.Errorf("sentiment: build prompt: %w", err)
	}
	resp, err := a.llm.Chat(ctx, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(prompt),
	}, &llm.ChatOptions{Temperature: llmTemperature, MaxTokens: llmMaxTokens})
	if err != nil {
		return nil, err
	}
	return ParseResponse(resp.Content, news)
}

// ParseResponse decodes the model output. A missing label is derived from
// the breakdown percentages, a missing score becomes (pos-neg)/100 and a
// missing news_count becomes len(news).
func ParseResponse(content string, news []models.NewsItem) (*models.SentimentRecord, error) {
	raw, ok := llm.ExtractJSON(content)
	if !ok {
		return nil, ErrMalformedResponse
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &present); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	rec := models.DefaultSentiment()
	rec.Sentiment = ""
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	// The model never gets to set these.
	rec.RawData = nil
	rec.CompanyName, rec.Symbol, rec.SourcePath = "", "", ""
	rec.AnalyzedAt = time.Time{}

	pos, neg := breakdown(present["sentiment_breakdown"])
	if _, ok := present["sentiment_score"]; !ok {
		rec.Score = round4((pos - neg) / 100)
	}
	rec.Score = max(-1, min(1, rec.Score))

	rec.Sentiment = models.Sentiment(strings.ToLower(strings.TrimSpace(string(rec.Sentiment))))
	switch rec.Sentiment {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		if _, ok := present["sentiment"]; ok {
			rec.Sentiment = models.LabelForScore(rec.Score)
		} else {
			rec.Sentiment = labelFromBreakdown(pos, neg)
		}
	}

	if _, ok := present["news_count"]; !ok {
		rec.NewsCount = len(news)
	}
	if rec.TrendingTopics == nil {
		rec.TrendingTopics = models.Topics{}
	}
	if len(rec.NewsSources) == 0 {
		rec.NewsSources = []string{}
		for _, n := range news {
			if src := n.SourceName(); !slices.Contains(rec.NewsSources, src) {
				rec.NewsSources = append(rec.NewsSources, src)
			}
		}
	}
	return &rec, nil
}

func breakdown(raw json.RawMessage) (pos, neg float64) {
	var b struct {
		Positive float64 `json:"positive_percentage"`
		Negative float64 `json:"negative_percentage"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return 0, 0
	}
	return b.Positive, b.Negative
}

func labelFromBreakdown(pos, neg float64) models.Sentiment {
	switch {
	case pos > neg+10:
		return models.SentimentPositive
	case neg > pos+10:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// analysisBlock copies the four analysis sections into the raw_data block,
// substituting empty containers for absent ones.
func analysisBlock(in *models.Insights) models.AnalysisBlock {
	block := models.EmptyAnalysisBlock()
	if in == nil {
		return block
	}
	if in.DigitalData != nil {
		block.DigitalData = in.DigitalData
	}
	if in.BehavioralData != nil {
		block.BehavioralData = in.BehavioralData
	}
	if in.StrategicInsights != nil {
		block.StrategicInsights = in.StrategicInsights
	}
	if in.CostOptimization != nil {
		block.CostOptimization = in.CostOptimization
	}
	return block
}

