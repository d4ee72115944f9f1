package formatter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/finpress/pkg/models"
)

// ── Format ──

func TestFormat_Whitelists(t *testing.T) {
	raw := map[string]any{
		"company_name": "Petrobras",
		"financial": map[string]any{
			"action_symbol": "PETR4.SA",
			"price":         30.5,
			"volume":        50000000,
			"beta":          1.2,
			"raw_data":      map[string]any{"x": 1},
		},
		"sentiment": map[string]any{
			"sentiment":       "positive",
			"sentiment_score": 0.7,
			"news_count":      10,
			"positive_count":  7,
			"trending_topics": "petróleo, dividendos",
			"unexpected":      true,
		},
		"extra": "dropped",
	}

	in, err := Format(raw)
	require.NoError(t, err)

	assert.Equal(t, "Petrobras", in.CompanyName)
	assert.Equal(t, "PETR4.SA", in.Symbol)
	assert.Equal(t, "PETR4.SA", in.Financial.Symbol)
	assert.Empty(t, in.Financial.ActionSymbol)
	require.NotNil(t, in.Financial.Price)
	assert.Equal(t, 30.5, *in.Financial.Price)
	require.NotNil(t, in.Financial.Volume)
	assert.Equal(t, int64(50000000), *in.Financial.Volume)
	assert.Nil(t, in.Financial.RawData)

	assert.Equal(t, models.SentimentPositive, in.Sentiment.Sentiment)
	assert.Equal(t, 0.7, in.Sentiment.Score)
	assert.Equal(t, 7, in.Sentiment.PositiveCount)
	assert.Equal(t, models.Topics{"petróleo", "dividendos"}, in.Sentiment.TrendingTopics)
}

func TestFormat_MisspelledCompanyName(t *testing.T) {
	in, err := Format(map[string]any{"companny_name": "Vale"})
	require.NoError(t, err)
	assert.Equal(t, "Vale", in.CompanyName)
	assert.Equal(t, "Vale", in.Symbol)
}

func TestFormat_SymbolPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{
			name: "top level wins",
			raw: map[string]any{"company_name": "Vale", "symbol": "VALE3",
				"financial": map[string]any{"action_symbol": "X", "symbol": "Y"}},
			want: "VALE3",
		},
		{
			name: "action symbol",
			raw:  map[string]any{"company_name": "Vale", "financial": map[string]any{"action_symbol": "X", "symbol": "Y"}},
			want: "X",
		},
		{
			name: "financial symbol",
			raw:  map[string]any{"company_name": "Vale", "financial": map[string]any{"symbol": "Y"}},
			want: "Y",
		},
		{
			name: "company name",
			raw:  map[string]any{"company_name": "Vale"},
			want: "Vale",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Format(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Symbol)
		})
	}
}

func TestFormat_SentimentDefaults(t *testing.T) {
	in, err := Format(map[string]any{"company_name": "Itaú"})
	require.NoError(t, err)

	assert.Equal(t, models.SentimentNeutral, in.Sentiment.Sentiment)
	assert.Zero(t, in.Sentiment.Score)
	assert.Zero(t, in.Sentiment.NewsCount)
	assert.NotNil(t, in.Sentiment.TrendingTopics)
	assert.Empty(t, in.Sentiment.TrendingTopics)
	assert.True(t, in.Financial.IsEmpty())
}

func TestFormat_KeepsInsights(t *testing.T) {
	in, err := Format(map[string]any{
		"company_name": "Petrobras",
		"sentiment": map[string]any{
			"sentiment":          "neutral",
			"risk_alerts":        []any{"câmbio"},
			"strategic_analysis": "texto",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, in.Sentiment.Insights)
	assert.Equal(t, []any{"câmbio"}, in.Sentiment.RiskAlerts)
	assert.Equal(t, "texto", in.Sentiment.StrategicAnalysis)
}

func TestFormat_NormalizesLooseValues(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		check func(t *testing.T, in *models.ArticleInput)
	}{
		{
			name: "string price",
			raw:  map[string]any{"company_name": "A", "financial": map[string]any{"price": "30.50"}},
			check: func(t *testing.T, in *models.ArticleInput) {
				require.NotNil(t, in.Financial.Price)
				assert.Equal(t, 30.5, *in.Financial.Price)
			},
		},
		{
			name: "brazilian number strings",
			raw: map[string]any{"company_name": "A", "financial": map[string]any{
				"price": "R$ 1.234,56", "change_percent": "1,67%", "volume": "50000000",
			}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.InDelta(t, 1234.56, *in.Financial.Price, 1e-9)
				assert.InDelta(t, 1.67, *in.Financial.ChangePercent, 1e-9)
				assert.Equal(t, int64(50000000), *in.Financial.Volume)
			},
		},
		{
			name: "non-numeric price is dropped",
			raw:  map[string]any{"company_name": "A", "financial": map[string]any{"price": "caro", "change": 0.5}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Nil(t, in.Financial.Price)
				assert.Equal(t, 0.5, *in.Financial.Change)
			},
		},
		{
			name: "missing company falls back to symbol",
			raw:  map[string]any{"symbol": "VALE3"},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Equal(t, "VALE3", in.CompanyName)
				assert.Equal(t, "VALE3", in.Symbol)
			},
		},
		{
			name: "blank company",
			raw:  map[string]any{"company_name": "  "},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Empty(t, in.CompanyName)
				assert.Empty(t, in.Symbol)
			},
		},
		{
			name: "capitalized label",
			raw:  map[string]any{"company_name": "A", "sentiment": map[string]any{"sentiment": "Positive"}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Equal(t, models.SentimentPositive, in.Sentiment.Sentiment)
			},
		},
		{
			name: "unknown label",
			raw:  map[string]any{"company_name": "A", "sentiment": map[string]any{"sentiment": "bullish"}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Equal(t, models.SentimentNeutral, in.Sentiment.Sentiment)
			},
		},
		{
			name: "score clamped",
			raw:  map[string]any{"company_name": "A", "sentiment": map[string]any{"sentiment_score": 3.0}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Equal(t, 1.0, in.Sentiment.Score)
			},
		},
		{
			name: "string score clamped",
			raw:  map[string]any{"company_name": "A", "sentiment": map[string]any{"sentiment_score": "-7"}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Equal(t, -1.0, in.Sentiment.Score)
			},
		},
		{
			name: "negative count",
			raw:  map[string]any{"company_name": "A", "sentiment": map[string]any{"news_count": -1, "positive_count": "4"}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Zero(t, in.Sentiment.NewsCount)
				assert.Equal(t, 4, in.Sentiment.PositiveCount)
			},
		},
		{
			name: "wrong shaped sources",
			raw:  map[string]any{"company_name": "A", "sentiment": map[string]any{"news_sources": 12, "news_count": 2}},
			check: func(t *testing.T, in *models.ArticleInput) {
				assert.Equal(t, []string{}, in.Sentiment.NewsSources)
				assert.Equal(t, 2, in.Sentiment.NewsCount)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Format(tt.raw)
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}

func TestFormat_NilDocument(t *testing.T) {
	_, err := Format(nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "empty")
}

func TestFormatJSON(t *testing.T) {
	in, err := FormatJSON([]byte(`{"company_name":"Vale","financial":{"price":61.2}}`))
	require.NoError(t, err)
	assert.Equal(t, 61.2, *in.Financial.Price)

	_, err = FormatJSON([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FormatJSON([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FormatJSON([]byte(`null`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// ── Prepare ──

func TestPrepare_JSON(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	output := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(input, []byte(`{
		"companny_name": "Petrobras",
		"financial": {"action_symbol": "PETR4.SA", "price": 30.5},
		"sentiment": {"sentiment": "positive", "trending_topics": "<pré-sal>"}
	}`), 0o644))

	in, err := Prepare(input, output)
	require.NoError(t, err)
	assert.Equal(t, "Petrobras", in.CompanyName)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "\n    \"company_name\": \"Petrobras\"")
	assert.Contains(t, text, "<pré-sal>")
	assert.NotContains(t, text, "action_symbol")

	var back models.ArticleInput
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "PETR4.SA", back.Symbol)
}

func TestPrepare_YAML(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.yaml")
	output := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join([]string{
		"company_name: Vale",
		"financial:",
		"  price: 61.2",
		"  volume: 1200",
		"sentiment:",
		"  sentiment: negative",
		"  sentiment_score: -0.6",
		"  trending_topics: [minério, china]",
	}, "\n")), 0o644))

	in, err := Prepare(input, output)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), *in.Financial.Volume)
	assert.Equal(t, models.SentimentNegative, in.Sentiment.Sentiment)
	assert.Equal(t, models.Topics{"minério", "china"}, in.Sentiment.TrendingTopics)
	assert.FileExists(t, output)
}

func TestPrepare_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Prepare(filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1, 2]`), 0o644))
	_, err = Prepare(bad, filepath.Join(dir, "out.json"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoFileExists(t, filepath.Join(dir, "out.json"))
}
