package datasource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/finpress/pkg/models"
)

// FeedSource filters configured RSS/Atom feeds for items that mention a company.
type FeedSource struct {
	feeds  []string
	parser *gofeed.Parser
}

// NewFeedSource creates a feed source over the given feed URLs.
func NewFeedSource(feeds []string) *FeedSource {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 15 * time.Second}
	parser.UserAgent = DefaultUserAgent
	return &FeedSource{feeds: feeds, parser: parser}
}

// Name returns the source name.
func (f *FeedSource) Name() string { return "RSS" }

// Search parses every feed concurrently and keeps matching items, newest
// first. Individual feed failures are logged and skipped; ErrNoResults is
// returned when nothing matched.
func (f *FeedSource) Search(ctx context.Context, company string, limit int) ([]models.NewsItem, error) {
	var (
		mu      sync.Mutex
		matched []models.NewsItem
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, feedURL := range f.feeds {
		g.Go(func() error {
			items, err := f.fetch(gctx, feedURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				log.Warn().Str("feed", feedURL).Err(err).Msg("feed fetch failed")
				return nil
			}
			for _, item := range items {
				if mentions(item, company) {
					matched = append(matched, item)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(matched) == 0 {
		if failed == len(f.feeds) && failed > 0 {
			return nil, fmt.Errorf("%w: all %d feeds failed", ErrNoResults, failed)
		}
		return nil, ErrNoResults
	}

	sortNewestFirst(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *FeedSource) fetch(ctx context.Context, feedURL string) ([]models.NewsItem, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := strings.TrimSpace(feed.Title)
	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		n := models.NewsItem{
			Title:       strings.TrimSpace(it.Title),
			Description: cleanHTML(it.Description),
			Source:      source,
			URL:         it.Link,
		}
		if it.PublishedParsed != nil {
			n.PublishedAt = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			n.PublishedAt = *it.UpdatedParsed
		}
		items = append(items, n)
	}
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
