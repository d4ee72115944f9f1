package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/internal/config"
	"github.com/seenimoa/finpress/pkg/models"
)

// NewsSource returns recent news mentioning a company.
type NewsSource interface {
	// Name returns the human-readable name of this source.
	Name() string

	// Search returns up to limit items about company, newest first.
	Search(ctx context.Context, company string, limit int) ([]models.NewsItem, error)
}

// NewsChain tries each source in order and returns the first successful
// result. The mock source, when present, always succeeds.
type NewsChain struct {
	sources []NewsSource
}

// NewNewsChain creates a chain over the given sources.
func NewNewsChain(sources ...NewsSource) *NewsChain {
	return &NewsChain{sources: sources}
}

// NewNewsChainFromConfig builds NewsAPI (when a key is set), RSS feeds (when
// any are configured) and the mock source, in that order.
func NewNewsChainFromConfig(cfg config.NewsConfig) *NewsChain {
	var sources []NewsSource
	if cfg.APIKey != "" {
		sources = append(sources, NewNewsAPI(cfg.APIKey,
			WithNewsAPIBaseURL(cfg.BaseURL),
			WithNewsAPILanguage(cfg.Language),
			WithNewsAPITimeout(cfg.Timeout),
		))
	}
	if len(cfg.Feeds) > 0 {
		sources = append(sources, NewFeedSource(cfg.Feeds))
	}
	sources = append(sources, MockNews{})
	return NewNewsChain(sources...)
}

// Name lists the chained source names.
func (c *NewsChain) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, " > ")
}

// Sources returns the chained sources in order.
func (c *NewsChain) Sources() []NewsSource {
	return c.sources
}

// Search walks the chain. A source error falls through to the next source.
func (c *NewsChain) Search(ctx context.Context, company string, limit int) ([]models.NewsItem, error) {
	var errs []error
	for _, src := range c.sources {
		items, err := src.Search(ctx, company, limit)
		if err == nil {
			log.Debug().Str("source", src.Name()).Int("items", len(items)).Msg("news retrieved")
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Str("source", src.Name()).Err(err).Msg("news source failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoResults
	}
	return nil, errors.Join(errs...)
}

// --- Internal helpers ---

// mentions reports whether the item's title or description contains company.
func mentions(item models.NewsItem, company string) bool {
	needle := strings.ToLower(strings.TrimSpace(company))
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(item.Text()), needle)
}

// sortNewestFirst orders items by publication time, undated items last.
func sortNewestFirst(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
