package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/finpress/pkg/models"
)

// MockSourceName is the publisher of the placeholder news item.
const MockSourceName = "Financial News"

// MockNews is the last link of the news chain: one deterministic item that
// names the company, so downstream stages always have input.
type MockNews struct {
	// Now overrides the publication clock. Nil uses time.Now.
	Now func() time.Time
}

// Name returns the source name.
func (MockNews) Name() string { return "Mock" }

// Search returns exactly one item regardless of limit.
func (m MockNews) Search(_ context.Context, company string, _ int) ([]models.NewsItem, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return []models.NewsItem{{
		Title:       fmt.Sprintf("Análise: %s mostra sinais positivos no mercado", company),
		Description: fmt.Sprintf("Especialistas indicam crescimento para %s", company),
		Source:      MockSourceName,
		PublishedAt: now().UTC(),
	}}, nil
}
