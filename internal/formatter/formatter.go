// Package formatter normalizes loosely shaped article inputs (CLI arguments,
// prepared files, API bodies) into a validated models.ArticleInput.
package formatter

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/pkg/models"
)

// ErrInvalidInput is returned when the document is not a JSON or YAML object.
var ErrInvalidInput = errors.New("formatter: invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Keys copied from the "financial" object. Everything else is dropped.
var financialKeys = []string{
	"symbol", "action_symbol", "company_name",
	"price", "previous_close", "change", "change_percent", "volume",
	"market_cap", "pe_ratio", "dividend_yield", "high_52w", "low_52w",
}

var financialNumbers = []string{
	"price", "previous_close", "change", "change_percent",
	"market_cap", "pe_ratio", "dividend_yield", "high_52w", "low_52w",
}

// Keys copied from the "sentiment" object, including the structured
// analysis that feeds the article prompt.
var sentimentKeys = []string{
	"sentiment", "sentiment_score", "news_count",
	"positive_count", "negative_count", "neutral_count",
	"trending_topics", "news_sources",
	"sentiment_breakdown", "digital_data", "behavioral_data",
	"engagement_metrics", "investor_confidence", "brand_perception",
	"strategic_insights", "cost_optimization", "actionable_insights",
	"improvement_opportunities", "risk_alerts", "strategic_analysis",
	"market_analysis", "macroeconomic_analysis", "key_insights",
	"raw_data",
}

var sentimentCounts = []string{"news_count", "positive_count", "negative_count", "neutral_count"}

// Format builds the article input from raw. company_name is also accepted
// under the historical misspelling "companny_name".
//
// Loosely typed values are normalized, never rejected: numeric strings such
// as "30.50" or "R$ 1.234,56" are parsed, an unknown sentiment label becomes
// neutral, the score is clamped to [-1, 1] and negative counts become 0.
// Values that cannot be used are dropped. Only a nil document is an error.
func Format(raw map[string]any) (*models.ArticleInput, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}

	in := &models.ArticleInput{Sentiment: models.DefaultSentiment()}

	finRaw := asMap(raw["financial"])
	decodeSubset(normalizeFinancial(finRaw), financialKeys, &in.Financial)
	decodeSubset(normalizeSentiment(asMap(raw["sentiment"])), sentimentKeys, &in.Sentiment)

	symbol := strings.TrimSpace(firstNonEmpty(
		firstString(raw, "symbol"),
		firstString(finRaw, "action_symbol"),
		firstString(finRaw, "symbol"),
	))
	in.CompanyName = strings.TrimSpace(firstNonEmpty(
		firstString(raw, "company_name", "companny_name"),
		firstString(finRaw, "company_name"),
		symbol,
	))
	in.Symbol = firstNonEmpty(symbol, in.CompanyName)
	in.Financial.Symbol = firstNonEmpty(in.Financial.ActionSymbol, in.Financial.Symbol)
	in.Financial.ActionSymbol = ""

	if in.Sentiment.Sentiment == "" {
		in.Sentiment.Sentiment = models.SentimentNeutral
	}
	if in.Sentiment.TrendingTopics == nil {
		in.Sentiment.TrendingTopics = models.Topics{}
	}
	if in.Sentiment.NewsSources == nil {
		in.Sentiment.NewsSources = []string{}
	}

	// Normalization above keeps every rule satisfied; a failure here is a bug.
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	return in, nil
}

// FormatJSON decodes a JSON object and formats it.
func FormatJSON(data []byte) (*models.ArticleInput, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Format(raw)
}

// decodeSubset copies the whitelisted keys of src into dst one at a time
// through JSON. A value of the wrong shape is skipped.
func decodeSubset(src map[string]any, keys []string, dst any) {
	for _, k := range keys {
		v, ok := src[k]
		if !ok || v == nil {
			continue
		}
		data, err := json.Marshal(map[string]any{k: v})
		if err == nil {
			err = json.Unmarshal(data, dst)
		}
		if err != nil {
			log.Debug().Str("key", k).Err(err).Msg("formatter: dropping unusable value")
		}
	}
}

// normalizeFinancial returns a copy of m with numeric fields coerced to
// numbers. Fields that are not numeric at all are removed.
func normalizeFinancial(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for _, k := range financialNumbers {
		setNumber(out, k, func(f float64) any { return f })
	}
	setNumber(out, "volume", func(f float64) any { return int64(math.Round(f)) })
	return out
}

// normalizeSentiment coerces the label, score and counts of m.
func normalizeSentiment(m map[string]any) map[string]any {
	out := maps.Clone(m)
	if out == nil {
		return nil
	}
	if v, ok := out["sentiment"]; ok {
		out["sentiment"] = string(label(v))
	}
	setNumber(out, "sentiment_score", func(f float64) any { return max(-1, min(1, f)) })
	for _, k := range sentimentCounts {
		setNumber(out, k, func(f float64) any { return max(0, int(math.Round(f))) })
	}
	return out
}

// setNumber replaces m[key] with conv(number) when the value parses as a
// number and deletes it otherwise.
func setNumber(m map[string]any, key string, conv func(float64) any) {
	v, ok := m[key]
	if !ok || v == nil {
		return
	}
	f, ok := toFloat(v)
	if !ok {
		log.Debug().Str("key", key).Str("value", fmt.Sprint(v)).Msg("formatter: dropping non-numeric value")
		delete(m, key)
		return
	}
	m[key] = conv(f)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, ok := parseNumber(x)
		if !ok {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseNumber accepts "30.50", "30,50", "R$ 1.234,56" and "1,67%".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// label maps free-form labels onto the three known ones. Anything else is
// neutral.
func label(v any) models.Sentiment {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "positivo":
		return models.SentimentPositive
	case "negative", "negativo":
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// asMap accepts both JSON-decoded and YAML-decoded objects.
func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out
	default:
		return nil
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
