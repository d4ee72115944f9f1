package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/finpress/pkg/models"
)

// DefaultNewsAPIBaseURL is the NewsAPI v2 endpoint root.
const DefaultNewsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPI searches https://newsapi.org for articles about a company.
type NewsAPI struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
}

// NewsAPIOption configures the NewsAPI client.
type NewsAPIOption func(*NewsAPI)

// WithNewsAPIBaseURL overrides the endpoint root. Empty keeps the default.
func WithNewsAPIBaseURL(u string) NewsAPIOption {
	return func(n *NewsAPI) {
		if u != "" {
			n.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithNewsAPILanguage sets the article language filter. Empty keeps "pt".
func WithNewsAPILanguage(lang string) NewsAPIOption {
	return func(n *NewsAPI) {
		if lang != "" {
			n.language = lang
		}
	}
}

// WithNewsAPITimeout sets the request timeout. Zero keeps 10s.
func WithNewsAPITimeout(d time.Duration) NewsAPIOption {
	return func(n *NewsAPI) {
		if d > 0 {
			n.http = &http.Client{Timeout: d}
		}
	}
}

// NewNewsAPI creates a NewsAPI client.
func NewNewsAPI(apiKey string, opts ...NewsAPIOption) *NewsAPI {
	n := &NewsAPI{
		apiKey:   apiKey,
		baseURL:  DefaultNewsAPIBaseURL,
		language: "pt",
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the source name.
func (n *NewsAPI) Name() string { return "NewsAPI" }

type newsAPIResponse struct {
	Status   string            `json:"status"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Articles []models.NewsItem `json:"articles"`
}

// Search queries /everything sorted by publication date. A 200 response
// with no articles is a valid empty result.
func (n *NewsAPI) Search(ctx context.Context, company string, limit int) ([]models.NewsItem, error) {
	if n.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if limit <= 0 {
		limit = 20
	}

	q := url.Values{}
	q.Set("q", company)
	q.Set("language", n.language)
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(limit))

	// The key travels as a header so it never shows up in URLs or errors.
	body, err := doGet(ctx, n.http, n.baseURL+"/everything?"+q.Encode(), map[string]string{"X-Api-Key": n.apiKey})
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	defer body.Close()

	var resp newsAPIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("newsapi: decode response: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi: %s: %s", resp.Code, resp.Message)
	}

	items := resp.Articles
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
