package api

import (
	"github.com/gofiber/fiber/v2"
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

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
	reportListLimit = 200
)

// Handlers contains all HTTP handler methods for the API.
type Handlers struct {
	cfg      *config.Config
	store    *store.Store
	todoist  *todoist.Client
	syncer   *todoist.Syncer
	calendar *calendar.Runner
	orch     *orchestration.Service
	checker  *health.Checker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *config.Config, deps Deps, logger zerolog.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		store:    deps.Store,
		todoist:  deps.Todoist,
		syncer:   deps.Syncer,
		calendar: deps.Calendar,
		orch:     deps.Orchestration,
		checker:  deps.Checker,
		metrics:  deps.Metrics,
		logger:   logger.With().Str("component", "api_handlers").Logger(),
	}
}

func (h *Handlers) log(c *fiber.Ctx) *zerolog.Logger {
	l := requestid.Logger(c.UserContext(), h.logger)
	return &l
}
