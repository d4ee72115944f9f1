package pipeline

import (
	"context"
	"errors"

	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/internal/article"
	"github.com/seenimoa/finpress/internal/config"
	"github.com/seenimoa/finpress/internal/datasource"
	"github.com/seenimoa/finpress/internal/financial"
	"github.com/seenimoa/finpress/internal/llm"
	"github.com/seenimoa/finpress/internal/resolver"
	"github.com/seenimoa/finpress/internal/sentiment"
)

// Components holds every stage built from one configuration. LLM is nil
// when no provider has credentials; the stages then use their
// deterministic paths.
type Components struct {
	Config    *config.Config
	Market    *datasource.YahooClient
	News      *datasource.NewsChain
	Resolver  *resolver.Resolver
	LLM       *llm.Router
	Extractor *financial.Extractor
	Analyzer  *sentiment.Analyzer
	Generator *article.Generator
}

// Wire builds the components described by cfg. A missing key only
// disables the path that needs it.
func Wire(ctx context.Context, cfg *config.Config) *Components {
	c := &Components{
		Config: cfg,
		Market: datasource.NewYahooClientFromConfig(cfg.Market),
		News:   datasource.NewNewsChainFromConfig(cfg.News),
	}
	c.Resolver = resolver.New(c.Market)
	c.Extractor = financial.New(c.Market, c.Resolver)

	router, err := llm.NewRouterFromConfig(ctx, cfg)
	switch {
	case err == nil:
		c.LLM = router
	case errors.Is(err, llm.ErrNoProviders):
		log.Info().Msg("no llm provider configured, using keyword sentiment and template articles")
	default:
		log.Warn().Err(err).Msg("llm router disabled")
	}

	var sentOpts []sentiment.Option
	artOpts := []article.Option{article.WithOutputFormat(cfg.Article.OutputFormat)}
	if c.LLM != nil {
		sentOpts = append(sentOpts, sentiment.WithLLM(c.LLM))
		artOpts = append(artOpts, article.WithLLM(c.LLM))
	}
	c.Analyzer = sentiment.New(c.News, sentOpts...)
	c.Generator = article.New(artOpts...)
	return c
}

// Pipeline returns the end-to-end pipeline over c.
func (c *Components) Pipeline() *Pipeline {
	return New(Config{
		Fetcher:    c.Extractor,
		Analyzer:   c.Analyzer,
		Generator:  c.Generator,
		MaxRetries: c.Config.Financial.MaxRetries,
		RetryDelay: c.Config.Financial.RetryDelay,
	})
}
