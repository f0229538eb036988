// Package server is a reference implementation of the graph service the
// remote client talks to. It stores users, graphs and agents in a
// storage.Repository and protects the /creation routes with bearer tokens.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/randalmurphal/nodemap/pkg/nodemap/storage"
)

// Config configures a Server.
type Config struct {
	// JWTSecret signs access tokens. Required.
	JWTSecret string

	// TokenTTL is the lifetime of issued tokens.
	// Default: 24h
	TokenTTL time.Duration

	// AllowOrigins is the CORS origin list.
	// Default: "*"
	AllowOrigins string

	// Logger receives request and error logs.
	// Default: no-op
	Logger *zap.Logger

	// Tracing enables the otelfiber middleware.
	Tracing bool
}

// ErrMissingSecret is returned by New when Config.JWTSecret is empty.
var ErrMissingSecret = errors.New("server: jwt secret is required")

// Server serves the graph API.
type Server struct {
	app      *fiber.App
	repo     storage.Repository
	cfg      Config
	logger   *zap.Logger
	revoked  *cache.Cache
	validate *validator.Validate
}

// New creates a Server backed by repo.
func New(repo storage.Repository, cfg Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = "*"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		repo:     repo,
		cfg:      cfg,
		logger:   cfg.Logger,
		revoked:  cache.New(cfg.TokenTTL, 10*time.Minute),
		validate: newValidator(),
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             10 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	if cfg.Tracing {
		app.Use(otelfiber.Middleware())
	}
	app.Use(s.logRequests)

	s.routes(app)
	s.app = app
	return s, nil
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/api/status", s.status)

	auth := app.Group("/auth")
	auth.Post("/register", s.register)
	auth.Post("/login", s.login)
	auth.Post("/logout", s.requireToken, s.logout)

	creation := app.Group("/creation", s.requireToken)
	creation.Get("/getnodemaps", s.listGraphs)
	creation.Post("/getnodemapdata", s.getGraph)
	creation.Post("/createmap", s.createGraph)
	creation.Post("/savenodemap", s.saveGraph)
	creation.Post("/togglenodemapfavorite", s.toggleFavorite)
	creation.Post("/createagent", s.createAgent)
	creation.Get("/getagents", s.listAgents)
}

// App returns the underlying Fiber app, for tests and adaptors.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	s.logger.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.String("request_id", c.Get("X-Request-ID")),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

// handleError renders unhandled errors as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
