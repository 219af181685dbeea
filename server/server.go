// Package server exposes the engine over HTTP with echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/poiesic/counsel/chat"
	"github.com/poiesic/counsel/documents"
	"github.com/poiesic/counsel/search"
	"github.com/poiesic/counsel/stream"
	"github.com/poiesic/counsel/telemetry"
)

// Default result limits for requests that omit one.
const (
	DefaultSearchLimit  = 10
	DefaultHistoryLimit = 50
	DefaultSessionLimit = 20
)

// Limits holds the per-route default limits.
type Limits struct {
	Search   int
	History  int
	Sessions int
}

// Server routes HTTP requests to the engine services.
type Server struct {
	echo      *echo.Echo
	chat      *chat.Service
	streamer  *stream.Streamer
	searcher  *search.Searcher
	documents *documents.Service
	metrics   *telemetry.Metrics
	limits    Limits
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithMetrics exposes /metrics and counts requests.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

// WithLimits overrides the default limits. Non-positive values keep the default.
func WithLimits(l Limits) Option {
	return func(s *Server) error {
		if l.Search > 0 {
			s.limits.Search = l.Search
		}
		if l.History > 0 {
			s.limits.History = l.History
		}
		if l.Sessions > 0 {
			s.limits.Sessions = l.Sessions
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a server and registers its routes.
func New(
	chatService *chat.Service,
	streamer *stream.Streamer,
	searcher *search.Searcher,
	docs *documents.Service,
	opts ...Option,
) (*Server, error) {
	if chatService == nil {
		return nil, ErrChatServiceRequired
	}
	if streamer == nil {
		return nil, ErrStreamerRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if docs == nil {
		return nil, ErrDocumentServiceRequired
	}

	s := &Server{
		chat:      chatService,
		streamer:  streamer,
		searcher:  searcher,
		documents: docs,
		limits: Limits{
			Search:   DefaultSearchLimit,
			History:  DefaultHistoryLimit,
			Sessions: DefaultSessionLimit,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.observe)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	api := e.Group("/api")
	chatGroup := api.Group("/chat")
	chatGroup.POST("/ask", s.ask)
	chatGroup.GET("/stream", s.stream)
	chatGroup.GET("/reference/:messageId", s.references)
	chatGroup.GET("/history", s.history)
	chatGroup.GET("/sessions", s.sessions)

	api.GET("/search", s.search)
	api.POST("/search", s.search)

	api.POST("/documents", s.registerDocument)
	api.GET("/documents/:id", s.getDocument)
	api.POST("/documents/:id/update-parse-status", s.updateParseStatus)

	s.echo = e
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError renders every failure as {"error": "<summary>"}.
func (s *Server) handleError(err error, c echo.Context) {
	code := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Message != nil {
		msg = fmt.Sprint(he.Message)
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "err", err)
		msg = http.StatusText(code)
	}
	if !c.Response().Committed {
		if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
			s.logger.Warn("failed to write error response", "err", err)
		}
	}
}

// observe logs and counts each request.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		code := c.Response().Status
		if err != nil {
			code = statusFor(err)
		}
		route := c.Path()
		s.metrics.ObserveRequest(c.Request().Method, route, code)
		s.logger.Debug("request", "method", c.Request().Method, "route", route, "status", code, "duration", time.Since(start))
		return err
	}
}
