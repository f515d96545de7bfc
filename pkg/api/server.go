// Package api serves read-only inspection endpoints over a regions provider.
package api

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/TFMV/regions/pkg/metrics"
	"github.com/TFMV/regions/pkg/provider"
)

// Server represents the API server
type Server struct {
	app      *fiber.App
	provider *provider.Provider
	metrics  *metrics.Collector
	log      *zap.Logger
}

// ServerOptions defines the configuration for the server.
type ServerOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer creates a new API server
func NewServer(p *provider.Provider, c *metrics.Collector, log *zap.Logger, opts ServerOptions) *Server {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		IdleTimeout:           30 * time.Second,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
	})

	// Add middleware
	app.Use(recover.New())
	app.Use(requestLogger(log))

	server := &Server{
		app:      app,
		provider: p,
		metrics:  c,
		log:      log,
	}

	// Register routes
	server.registerRoutes()

	return server
}

// registerRoutes registers the API routes
func (s *Server) registerRoutes() {
	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	s.app.Get("/views", listViewsHandler(s.provider))
	s.app.Get("/views/:view", describeViewHandler(s.provider))
	s.app.Get("/views/:view/positions", positionsHandler(s.provider))
	s.app.Get("/distance", distanceHandler(s.provider, s.log))
	s.app.Get("/metrics", metricsHandler(s.metrics))
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.log.Info("Starting inspection server", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requestLogger logs each request through zap
func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug("Request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}
