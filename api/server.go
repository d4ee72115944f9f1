// Package api provides the HTTP REST API server for FinPress.
//
// It exposes the pipeline stages (market data, sentiment, article) and the
// end-to-end run behind a JSON envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/internal/config"
	"github.com/seenimoa/finpress/internal/financial"
	"github.com/seenimoa/finpress/internal/formatter"
	"github.com/seenimoa/finpress/internal/pipeline"
	"github.com/seenimoa/finpress/internal/sentiment"
	"github.com/seenimoa/finpress/pkg/models"
)

// Version is reported by /health. The CLI overrides it at startup.
var Version = "dev"

const maxBodyBytes = 1 << 20

// Runner executes the end-to-end pipeline.
type Runner interface {
	Run(ctx context.Context, company string, limit int) (*pipeline.Result, error)
}

// Stages are the handlers' dependencies.
type Stages struct {
	Fetcher   pipeline.Fetcher
	Analyzer  pipeline.SentimentAnalyzer
	Generator pipeline.ArticleGenerator
	Runner    Runner
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	stages Stages
}

// NewServer creates a configured API server over the wired components.
func NewServer(cfg *config.Config, c *pipeline.Components) *Server {
	return newServer(cfg, Stages{
		Fetcher:   c.Extractor,
		Analyzer:  c.Analyzer,
		Generator: c.Generator,
		Runner:    c.Pipeline(),
	})
}

func newServer(cfg *config.Config, stages Stages) *Server {
	s := &Server{cfg: cfg, stages: stages}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(150 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Configuration
		r.Get("/config/keys", s.handleGetConfigKeys)

		// Stages
		r.Get("/financial/{company}", s.handleFinancial)
		r.Post("/sentiment", s.handleSentiment)
		r.Post("/article", s.handleArticle)

		// End-to-end
		r.Post("/pipeline", s.handlePipeline)
	})

	return r
}

// requestLogger logs one line per request through the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SentimentRequest is the body for POST /api/v1/sentiment.
type SentimentRequest struct {
	CompanyName string                  `json:"company_name"`
	Limit       int                     `json:"limit,omitempty"`
	Symbol      string                  `json:"symbol,omitempty"`
	Financial   *models.FinancialRecord `json:"financial,omitempty"`
}

// PipelineRequest is the body for POST /api/v1/pipeline.
type PipelineRequest struct {
	CompanyName string `json:"company_name"`
	Limit       int    `json:"limit,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleFinancial(w http.ResponseWriter, r *http.Request) {
	company := strings.TrimSpace(chi.URLParam(r, "company"))
	if company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return
	}

	retries := s.cfg.Financial.MaxRetries
	if v := r.URL.Query().Get("retries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "retries must be a positive integer")
			return
		}
		retries = n
	}

	rec, err := s.stages.Fetcher.FetchWithRetry(r.Context(), company, retries, s.cfg.Financial.RetryDelay)
	if err != nil {
		writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	var req SentimentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		writeError(w, http.StatusBadRequest, "company_name is required")
		return
	}

	rec := s.stages.Analyzer.Analyze(r.Context(), sentiment.Request{
		CompanyName: strings.TrimSpace(req.CompanyName),
		Limit:       req.Limit,
		Symbol:      req.Symbol,
		Financial:   req.Financial,
	})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if !decodeBody(w, r, &raw) {
		return
	}
	in, err := formatter.Format(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := s.stages.Generator.Generate(r.Context(), *in)
	writeJSON(w, http.StatusOK, APIResponse{Success: rec.Error == "", Data: rec, Error: rec.Error})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	var req PipelineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.stages.Runner.Run(r.Context(), req.CompanyName, req.Limit)
	if err != nil {
		writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

// ============================================================
// Helpers
// ============================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeStageError maps the error taxonomy onto status codes.
func writeStageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, financial.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, formatter.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
