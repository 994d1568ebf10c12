// Package server exposes the benchmark cache over HTTP.
//
// Handlers are thin: they decode path parameters, call one cache query and
// encode the result as JSON. The only handler that touches the disk is the
// full report endpoint, which streams the stored file verbatim.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/smileynet/benchdash/internal/cache"
	"github.com/smileynet/benchdash/internal/report"
)

// Sentinel errors mapped to HTTP status codes by the error handler.
var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid benchmark id")
)

// Store is the read side of the benchmark cache.
type Store interface {
	Hardware() []report.Hardware
	Gitrefs(hardware string) []string
	Runs(hardware, gitref string) []report.Report
	RunsForGitref(gitref string) []report.Report
	Run(id uuid.UUID) (report.Report, bool)
	Path(id uuid.UUID) (string, bool)
	Trend(paramsIdentifier, hardware string) []report.Report
	Stats() cache.Stats
}

var _ Store = (*cache.Cache)(nil)

// Server wires the HTTP routes onto a fiber app.
type Server struct {
	app         *fiber.App
	store       Store
	logger      *slog.Logger
	metricsPath string
	metrics     http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics serves h under path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// New builds a Server backed by store.
func New(store Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "benchdash",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Get("/stats", s.stats)
	api.Get("/hardware", s.listHardware)
	api.Get("/gitrefs/:hardware", s.listGitrefs)
	// Registered before the two-parameter route, which would otherwise match it.
	api.Get("/benchmarks/gitref/:gitref", s.listRunsForGitref)
	api.Get("/benchmarks/:hardware/:gitref", s.listRuns)
	api.Get("/benchmark/full/:uuid", s.fullReport)
	api.Get("/benchmark/trend/:hardware/:params_identifier", s.trend)
	api.Get("/benchmark/:uuid", s.lightReport)

	if s.metrics != nil {
		s.app.Get(s.metricsPath, adaptor.HTTPHandler(s.metrics))
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidID):
		return fiber.StatusBadRequest
	case errors.As(err, &fe):
		return fe.Code
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		// The error handler runs after this middleware returns.
		status = statusFor(err)
	}
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"ip", c.IP(),
		"elapsed", time.Since(start))
	return err
}
