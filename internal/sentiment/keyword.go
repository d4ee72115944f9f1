package sentiment

import (
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/seenimoa/finpress/pkg/models"
)

// Portuguese market vocabulary. Matching is case-insensitive substring
// containment, so "cresce" also hits "crescem". Each entry counts once per
// text, and "queda" is listed twice so it weighs double.
var (
	positiveWords = []string{
		"cresce", "crescimento", "alta", "ganho", "lucro", "positivo", "subiu",
		"melhora", "expansão", "sucesso", "vitória", "aumento", "valorização",
		"forte", "robusto", "bom", "excelente", "ótimo", "superou", "bateu recorde",
	}
	negativeWords = []string{
		"queda", "perda", "prejuízo", "negativo", "caiu", "decresce", "crise",
		"problema", "risco", "derrota", "queda", "redução", "desvalorização",
		"fraco", "fraqueza", "ruim", "péssimo", "falhou", "perdeu", "declínio",
	}
)

const (
	topicMinLen      = 5
	topicsPerItem    = 5
	maxTrendingTopic = 10
)

// ScoreText returns (pos-neg)/(pos+neg) over the keyword hits in text,
// rounded to four places, or 0 when nothing matches.
func ScoreText(text string) float64 {
	lower := strings.ToLower(text)
	pos := countHits(lower, positiveWords)
	neg := countHits(lower, negativeWords)
	if pos+neg == 0 {
		return 0
	}
	return round4(float64(pos-neg) / float64(pos+neg))
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// scoreKeywords aggregates per-item keyword scores into a record.
func scoreKeywords(news []models.NewsItem) models.SentimentRecord {
	rec := models.DefaultSentiment()
	if len(news) == 0 {
		return rec
	}

	var total float64
	var topics []string
	for _, item := range news {
		score := ScoreText(item.Text())
		total += score
		switch models.LabelForScore(score) {
		case models.SentimentPositive:
			rec.PositiveCount++
		case models.SentimentNegative:
			rec.NegativeCount++
		default:
			rec.NeutralCount++
		}

		if src := item.SourceName(); !slices.Contains(rec.NewsSources, src) {
			rec.NewsSources = append(rec.NewsSources, src)
		}
		topics = append(topics, leadingWords(strings.ToLower(item.Text()), topicsPerItem)...)
	}

	avg := total / float64(len(news))
	rec.Score = round4(avg)
	rec.Sentiment = models.LabelForScore(avg)
	rec.NewsCount = len(news)
	rec.TrendingTopics = dedupe(topics, maxTrendingTopic)
	return rec
}

// leadingWords returns the first n words of text with at least topicMinLen
// letters or digits.
func leadingWords(text string, n int) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := make([]string, 0, n)
	for _, w := range words {
		if len(out) == n {
			break
		}
		if len([]rune(w)) >= topicMinLen {
			out = append(out, w)
		}
	}
	return out
}

func dedupe(values []string, limit int) models.Topics {
	out := models.Topics{}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
