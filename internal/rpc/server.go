// Package rpc exposes the board engine over HTTP with fiber.
package rpc

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acastellana/clawcondos/internal/metrics"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	Auth        AuthConfig
	CORSOrigins string
}

// Server is the board API fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the API server.
func NewServer(cfg ServerConfig, handlers *Handlers, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "rpc_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers, m)
	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(func(c *fiber.Ctx) error {
		reqID := uuid.New().String()
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		}))
	}

	s.app.Use(newAuthMiddleware(cfg.Auth, logger))

	// Request log, skipping noisy probes.
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}
		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Msg("api request")
		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, m *metrics.Metrics) {
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)

	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := s.app.Group("/api/v1")

	v1.Post("/goals", h.CreateGoal)
	v1.Get("/goals", h.ListGoals)
	v1.Get("/goals/:id", h.GetGoal)
	v1.Post("/goals/status", h.SetGoalStatus)

	v1.Post("/tasks/update", h.UpdateTask)
	v1.Post("/tasks/add", h.AddTasks)
	v1.Post("/tasks/spawn", h.SpawnTask)

	v1.Post("/notes/append", h.AppendNote)
	v1.Post("/files/track", h.TrackFiles)

	v1.Post("/plans/sync", h.SyncPlan)
	v1.Post("/plans/status", h.SetPlanStatus)
	v1.Post("/plans/step", h.UpdatePlanStep)
	v1.Post("/plans/approve", h.ApprovePlan)
	v1.Post("/plans/reject", h.RejectPlan)
	v1.Get("/plans/activity/:session", h.PlanActivity)

	v1.Post("/condos", h.CreateCondo)
	v1.Get("/condos", h.ListCondos)
	v1.Get("/condos/:id", h.GetCondo)
	v1.Patch("/condos/:id", h.UpdateCondo)
	v1.Delete("/condos/:id", h.DeleteCondo)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
