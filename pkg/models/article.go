package models

import "time"

// Article generation paths.
const (
	GeneratedByLLM      = "llm"
	GeneratedByTemplate = "template"
	GeneratedByError    = "error"
)

// ArticleRecord is the output of the article stage. It is always produced,
// even on failure, in which case Error is set.
type ArticleRecord struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Error       string    `json:"error,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	GeneratedBy string    `json:"generated_by,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitzero"`
}

// ArticleInput is the normalized input of the article stage.
type ArticleInput struct {
	CompanyName string          `json:"company_name"`
	Symbol      string          `json:"symbol"`
	Financial   FinancialRecord `json:"financial"`
	Sentiment   SentimentRecord `json:"sentiment"`
}
