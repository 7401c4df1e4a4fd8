// Package api is the HTTP JSON interface of the dashboard backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/mission-control/internal/calendar"
	"github.com/p-blackswan/mission-control/internal/config"
	"github.com/p-blackswan/mission-control/internal/health"
	"github.com/p-blackswan/mission-control/internal/metrics"
	"github.com/p-blackswan/mission-control/internal/orchestration"
	"github.com/p-blackswan/mission-control/internal/requestid"
	"github.com/p-blackswan/mission-control/internal/store"
	"github.com/p-blackswan/mission-control/internal/todoist"
)

// Deps are the components the handlers call.
type Deps struct {
	Store         *store.Store
	Todoist       *todoist.Client // nil when TODOIST_API_TOKEN is unset
	Syncer        *todoist.Syncer
	Calendar      *calendar.Runner
	Orchestration *orchestration.Service
	Checker       *health.Checker
	Metrics       *metrics.Metrics
}

// Server is the API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   *config.Config
}

// NewServer creates and configures the API server.
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{
		app:      app,
		handlers: NewHandlers(cfg, deps, logger),
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, deps.Metrics)
	s.setupRoutes(s.handlers, deps)

	return s
}

func (s *Server) setupMiddleware(cfg *config.Config, m *metrics.Metrics) {
	s.app.Use(requestid.Middleware())

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Request-ID",
			AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
		}))
	}

	// Access log and request metrics
	s.app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the error handler set the status before it is recorded.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				c.Status(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		m.RecordRequest(c.Method(), route, strconv.Itoa(status), time.Since(start).Seconds())

		if quietPath(c.Path()) {
			return nil
		}
		ev := s.logger.Info()
		if status >= fiber.StatusInternalServerError {
			ev = s.logger.Error()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Str("request_id", requestid.FromContext(c.UserContext())).
			Msg("api request")
		return nil
	})

	// Inside the access log so panics are logged and counted as 500s.
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(NewAuthMiddleware(AuthConfig{
		Mode:      cfg.AuthMode,
		APIKey:    cfg.APIKey,
		JWTSecret: cfg.JWTSecret,
	}, s.logger))
}

func quietPath(path string) bool {
	return path == "/health" || path == "/ready" || path == "/metrics"
}

func (s *Server) setupRoutes(h *Handlers, deps Deps) {
	// Probes and scraping (no auth, see NewAuthMiddleware)
	s.app.Get("/health", h.Health)
	if deps.Checker != nil {
		s.app.Get("/ready", adaptor.HTTPHandlerFunc(deps.Checker.ReadinessHandler()))
	}
	if deps.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	s.app.Get("/projects", h.ListProjects)
	s.app.Post("/projects", h.CreateProject)
	s.app.Get("/projects/:id", h.GetProject)
	s.app.Patch("/projects/:id", h.UpdateProject)
	s.app.Delete("/projects/:id", h.DeleteProject)

	s.app.Get("/tasks", h.ListTasks)
	s.app.Post("/tasks", h.CreateTask)
	s.app.Get("/tasks/:id", h.GetTask)
	s.app.Patch("/tasks/:id", h.UpdateTask)
	s.app.Delete("/tasks/:id", h.DeleteTask)

	s.app.Get("/blockers", h.ListBlockers)
	s.app.Post("/blockers", h.CreateBlocker)
	s.app.Get("/blockers/:id", h.GetBlocker)
	s.app.Patch("/blockers/:id", h.UpdateBlocker)
	s.app.Delete("/blockers/:id", h.DeleteBlocker)

	s.app.Get("/research", h.ListResearch)
	s.app.Post("/research", h.CreateResearch)
	s.app.Get("/research/:id", h.GetResearch)
	s.app.Patch("/research/:id", h.UpdateResearch)
	s.app.Delete("/research/:id", h.DeleteResearch)

	s.app.Get("/bots", h.ListBots)
	s.app.Post("/bots", h.UpsertBot)
	s.app.Get("/bots/:id", h.GetBot)
	s.app.Delete("/bots/:id", h.DeleteBot)
	s.app.Get("/bots/:id/logs", h.ListBotLogs)
	s.app.Post("/bots/:id/logs", h.CreateBotLog)

	s.app.Get("/calendar/events", h.CalendarEvents)
	s.app.Get("/calendar/calendars", h.Calendars)

	s.app.Post("/sync", h.Sync)
	s.app.Get("/sync/status", h.SyncStatus)

	s.app.Post("/webhooks/todoist", h.TodoistWebhook)

	og := s.app.Group("/orchestration")
	og.Get("/tasks", h.ListOrchestrationTasks)
	og.Post("/tasks", h.CreateOrchestrationTask)
	og.Patch("/tasks/:id", h.UpdateOrchestrationTask)
	og.Get("/reports", h.ListReports)
	og.Post("/reports", h.CreateReport)
	og.Get("/escalations", h.ListEscalations)
	og.Patch("/escalations/:id", h.UpdateEscalation)
	og.Get("/dashboard", h.Dashboard)
	og.Get("/digest", h.Digest)
	og.Get("/support-report", h.SupportReport)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("unhandled error")
			// Don't leak internal details
			msg = "Internal server error"
		}
		if code == fiber.StatusNotFound && strings.HasPrefix(msg, "Cannot ") {
			msg = "Not found"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
