// Package http provides the voicematch HTTP API: run submission and status,
// dictionary matching, health and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/runner"
	"github.com/fyrsmithlabs/voicematch/internal/telemetry"
	"github.com/fyrsmithlabs/voicematch/internal/variations"
)

// Runs is the run service behind the API.
type Runs interface {
	Submit(ctx context.Context, req runner.Request) (string, error)
	Get(runID string) (runner.Record, bool)
	List() []runner.Record
}

// Matcher resolves spoken text against the dictionary stored under key.
// An empty key selects the default dictionary.
type Matcher interface {
	Match(ctx context.Context, key, text string) (variations.MatchResult, bool, error)
}

// Server provides HTTP endpoints for voicematch.
type Server struct {
	echo   *echo.Echo
	runs   Runs
	logger *logging.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// Health, when set, reports telemetry health on /health.
	Health func() telemetry.HealthStatus
	// Metrics, when set, records OpenTelemetry request metrics.
	Metrics *HTTPMetrics
	// Matcher, when set, serves GET /api/v1/match.
	Matcher Matcher
}

// NewServer creates a new HTTP server.
func NewServer(runs Runs, logger *logging.Logger, cfg *Config) (*Server, error) {
	if runs == nil {
		return nil, fmt.Errorf("run service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); logging.ValidID(id) {
				ctx = logging.WithRequestID(ctx, id)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	})
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.MetricsMiddleware())
	}

	s := &Server{
		echo:   e,
		runs:   runs,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/runs", s.handleSubmit)
	v1.GET("/runs", s.handleList)
	v1.GET("/runs/:id", s.handleGet)
	if s.config.Matcher != nil {
		v1.GET("/match", s.handleMatch)
	}
}

// SubmitRequest is the request body for POST /api/v1/runs.
type SubmitRequest struct {
	RunID    string   `json:"run_id,omitempty"`
	Words    []string `json:"words,omitempty"`
	WordsKey string   `json:"words_key,omitempty"`
}

// SubmitResponse is the response body for POST /api/v1/runs.
type SubmitResponse struct {
	RunID  string             `json:"run_id"`
	Status pipeline.RunStatus `json:"status"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// ListResponse is the response body for GET /api/v1/runs.
type ListResponse struct {
	Runs []runner.Record `json:"runs"`
}

// MatchResponse is the response body for GET /api/v1/match.
type MatchResponse struct {
	Text    string                  `json:"text"`
	Matched bool                    `json:"matched"`
	Match   *variations.MatchResult `json:"match,omitempty"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.config.Health != nil {
		h := s.config.Health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSubmit starts a run in the background.
func (s *Server) handleSubmit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid run request", zap.Error(err))
		s.config.Metrics.recordSubmission(c, "invalid")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := s.runs.Submit(c.Request().Context(), runner.Request{
		RunID:    req.RunID,
		Words:    req.Words,
		WordsKey: req.WordsKey,
	})
	if err != nil {
		var perr *pipeline.Error
		if errors.As(err, &perr) && perr.Kind == pipeline.KindConfig {
			s.config.Metrics.recordSubmission(c, "invalid")
			return echo.NewHTTPError(http.StatusBadRequest, perr.Err.Error())
		}
		s.logger.Error(c.Request().Context(), "run submission failed", zap.Error(err))
		s.config.Metrics.recordSubmission(c, "failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "run submission failed")
	}

	s.logger.Info(c.Request().Context(), "run submitted", zap.String("run.id", id))
	s.config.Metrics.recordSubmission(c, "accepted")
	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/runs/"+id)
	return c.JSON(http.StatusAccepted, SubmitResponse{RunID: id, Status: pipeline.RunRunning})
}

// handleList lists known runs.
func (s *Server) handleList(c echo.Context) error {
	return c.JSON(http.StatusOK, ListResponse{Runs: s.runs.List()})
}

// handleGet returns the record of one run.
func (s *Server) handleGet(c echo.Context) error {
	rec, ok := s.runs.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// handleMatch matches ?text= against the default dictionary, or against the
// dictionary written by ?run= when given.
func (s *Server) handleMatch(c echo.Context) error {
	text := c.QueryParam("text")
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	var key string
	if run := c.QueryParam("run"); run != "" {
		if !logging.ValidID(run) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
		}
		key = artifacts.OutputKey(run, variations.DictionaryFile)
	}

	ctx := c.Request().Context()
	res, ok, err := s.config.Matcher.Match(ctx, key, text)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "dictionary not found")
		}
		s.logger.Error(ctx, "dictionary match failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "dictionary match failed")
	}

	resp := MatchResponse{Text: text, Matched: ok}
	if ok {
		resp.Match = &res
	}
	return c.JSON(http.StatusOK, resp)
}

// Echo exposes the underlying router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
