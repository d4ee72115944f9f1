package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/finpress/api"
	"github.com/seenimoa/finpress/internal/config"
	"github.com/seenimoa/finpress/internal/pipeline"
)

const (
	statusSymbol  = "PETR4.SA"
	checkTimeout = 15 * time.Second
)

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a long-lived service",
	Long: `Run the startup availability checks, then keep running with a
periodic heartbeat until SIGINT or SIGTERM. With --http (or api.enabled)
the HTTP API is served as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		api.Version = version

		c := wire(ctx)
		for _, ch := range availability(ctx, c, false) {
			ev := log.Info()
			if !ch.OK {
				ev = log.Warn()
			}
			ev.Str("check", ch.Name).Bool("ok", ch.OK).Str("detail", ch.Detail).Msg("startup check")
		}

		hb := &heartbeat{every: cfg.Service.HeartbeatEvery}
		sched := cron.New()
		if _, err := sched.AddFunc(cfg.Service.HeartbeatSpec, func() { hb.tick(time.Now()) }); err != nil {
			return fail(err, map[string]string{"error": fmt.Sprintf("invalid heartbeat spec %q: %v", cfg.Service.HeartbeatSpec, err)})
		}
		sched.Start()
		log.Info().Str("spec", cfg.Service.HeartbeatSpec).Int("every", hb.every).Msg("service running, stop with Ctrl+C")

		g, gctx := errgroup.WithContext(ctx)
		httpOn, _ := cmd.Flags().GetBool("http")
		if httpOn || cfg.API.Enabled {
			addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
			srv := api.NewServer(cfg, c)
			g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
		}
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
		err := g.Wait()

		<-sched.Stop().Done()
		log.Info().Int64("heartbeats", hb.count.Load()).Msg("service stopped")
		if err != nil {
			return fail(err, map[string]string{"error": err.Error()})
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"status": "stopped", "ticks": hb.count.Load()})
	},
}

func init() {
	serveCmd.Flags().Bool("http", false, "also serve the HTTP API (api.host:api.port)")
}

// heartbeat logs a line on every n-th tick.
type heartbeat struct {
	every int
	count atomic.Int64
}

func (h *heartbeat) tick(now time.Time) bool {
	n := h.count.Add(1)
	every := int64(h.every)
	if every <= 0 {
		every = 1
	}
	if n%every != 0 {
		return false
	}
	log.Info().Str("at", now.Format("2006-01-02 15:04:05")).Int64("tick", n).Msg("service alive")
	return true
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show API key status and adapter availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := wire(cmd.Context())
		var providers []string
		if c.LLM != nil {
			providers = c.LLM.ProviderNames()
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"version":       version,
			"commit":        commit,
			"llm_primary":   cfg.LLM.Primary,
			"llm_providers": providers,
			"api":           fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			"keys":          config.CheckAPIKeys(cfg),
			"checks":        availability(cmd.Context(), c, true),
		})
	},
}

// --- Availability checks ---

type check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// availability runs the independent checks concurrently. withMarket adds
// a live Yahoo lookup.
func availability(ctx context.Context, c *pipeline.Components, withMarket bool) []check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	fns := []func(context.Context) check{
		func(context.Context) check { return checkStages(c) },
		func(ctx context.Context) check { return checkLLM(ctx, c) },
		func(context.Context) check { return checkNews(c) },
		func(context.Context) check { return checkGeminiKey(c.Config) },
	}
	if withMarket {
		fns = append(fns, func(ctx context.Context) check { return checkMarket(ctx, c) })
	}

	results := make([]check, len(fns))
	var g errgroup.Group
	for i, fn := range fns {
		g.Go(func() error {
			results[i] = fn(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func checkStages(c *pipeline.Components) check {
	var missing []string
	if c.Extractor == nil {
		missing = append(missing, "financial")
	}
	if c.Analyzer == nil {
		missing = append(missing, "sentiment")
	}
	if c.Generator == nil {
		missing = append(missing, "article")
	}
	if len(missing) > 0 {
		return check{Name: "stages", Detail: "missing: " + strings.Join(missing, ", ")}
	}
	return check{Name: "stages", OK: true, Detail: "financial, sentiment, formatter, article"}
}

func checkLLM(ctx context.Context, c *pipeline.Components) check {
	if c.LLM == nil {
		return check{Name: "llm", Detail: "no provider configured, keyword sentiment and template articles in use"}
	}
	health := c.LLM.HealthCheck(ctx)
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	ok := false
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if err := health[name]; err != nil {
			parts = append(parts, name+": "+err.Error())
			continue
		}
		ok = true
		parts = append(parts, name+": ok")
	}
	return check{Name: "llm", OK: ok, Detail: strings.Join(parts, "; ")}
}

func checkNews(c *pipeline.Components) check {
	ch := check{Name: "news", OK: c.Config.News.APIKey != "", Detail: c.News.Name()}
	if !ch.OK {
		ch.Detail += " (NEWS_API_KEY not set)"
	}
	return ch
}

func checkGeminiKey(cfg *config.Config) check {
	key := cfg.LLM.GeminiKey
	if key == "" {
		return check{Name: "gemini_key", Detail: "GEMINI_API_KEY not set, fallbacks in use"}
	}
	prefix := key
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return check{Name: "gemini_key", OK: true, Detail: prefix + "..."}
}

func checkMarket(ctx context.Context, c *pipeline.Components) check {
	res, err := c.Market.Lookup(ctx, statusSymbol)
	if err != nil {
		return check{Name: "market", Detail: err.Error()}
	}
	if res == nil {
		return check{Name: "market", Detail: statusSymbol + " not found"}
	}
	return check{Name: "market", OK: true, Detail: c.Market.Name()}
}
