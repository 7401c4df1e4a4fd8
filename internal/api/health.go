package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/mission-control/internal/health"
	"github.com/p-blackswan/mission-control/internal/models"
)

// CheckDatabase is the health check name for the data engine.
const CheckDatabase = "database"

// Health handles GET /health. It always answers 200 so an orchestrator does
// not restart the process during a database outage; the body says degraded.
func (h *Handlers) Health(c *fiber.Ctx) error {
	results := h.runChecks(c)
	dbResult, ok := results[CheckDatabase]
	if !ok {
		dbResult = health.OK()
	}

	resp := fiber.Map{
		"status":    health.Overall(results),
		"database":  "connected",
		"driver":    h.cfg.Driver(),
		"timestamp": models.FormatTime(time.Now()),
		"checks":    results,
	}
	if dbResult.Status == health.StatusDown {
		resp["database"] = "disconnected"
		resp["error"] = dbResult.Error
		resp["hints"] = h.databaseHints()
	}
	return c.JSON(resp)
}

func (h *Handlers) runChecks(c *fiber.Ctx) map[string]health.Result {
	if h.checker != nil {
		return h.checker.RunAll(c.UserContext())
	}
	if err := h.store.DB().Ping(c.UserContext()); err != nil {
		return map[string]health.Result{CheckDatabase: health.Down(err)}
	}
	return map[string]health.Result{CheckDatabase: health.OK()}
}

// databaseHints names the settings most likely behind a failed connection.
func (h *Handlers) databaseHints() []string {
	switch {
	case h.cfg.PostgresEnabled() && h.cfg.DatabaseURL == "":
		return []string{"DB_DRIVER selects postgres but DATABASE_URL is not set"}
	case h.cfg.PostgresEnabled():
		return []string{
			"DATABASE_URL is set but the database is unreachable",
			"check the host, credentials and sslmode in DATABASE_URL",
		}
	default:
		return []string{"DATA_DIR (" + h.cfg.DataDir + ") must exist and be writable"}
	}
}
