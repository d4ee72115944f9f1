package models

import (
	"encoding/json"
	"time"
)

// UnknownSource names a news item whose publisher is missing.
const UnknownSource = "Desconhecido"

// NewsItem is a single news article considered by the sentiment stage.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// Text returns the title and description joined for scoring.
func (n NewsItem) Text() string {
	if n.Description == "" {
		return n.Title
	}
	return n.Title + " " + n.Description
}

// SourceName returns the publisher name, falling back to UnknownSource.
func (n NewsItem) SourceName() string {
	if n.Source == "" {
		return UnknownSource
	}
	return n.Source
}

// UnmarshalJSON accepts both the flat shape and the NewsAPI article shape
// ({"source":{"name":...},"publishedAt":...}).
func (n *NewsItem) UnmarshalJSON(data []byte) error {
	var aux struct {
		Title        string          `json:"title"`
		Description  string          `json:"description"`
		Source       json.RawMessage `json:"source"`
		URL          string          `json:"url"`
		PublishedAt  string          `json:"published_at"`
		PublishedAlt string          `json:"publishedAt"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.Title = aux.Title
	n.Description = aux.Description
	n.URL = aux.URL
	n.Source = decodeSourceName(aux.Source)
	published := aux.PublishedAt
	if published == "" {
		published = aux.PublishedAlt
	}
	if t, err := time.Parse(time.RFC3339, published); err == nil {
		n.PublishedAt = t
	}
	return nil
}

func decodeSourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	return ""
}
