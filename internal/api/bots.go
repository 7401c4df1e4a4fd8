package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/mission-control/internal/models"
)

// ListBots handles GET /bots. Each bot carries its newest logs.
func (h *Handlers) ListBots(c *fiber.Ctx) error {
	bots, err := h.store.ListBots(c.UserContext(), h.cfg.BotLogInlineLimit)
	if err != nil {
		return h.fail(c, err, "Bot", "fetch bots")
	}
	return c.JSON(bots)
}

// GetBot handles GET /bots/:id.
func (h *Handlers) GetBot(c *fiber.Ctx) error {
	b, err := h.store.GetBot(c.UserContext(), c.Params("id"), h.cfg.BotLogInlineLimit)
	if err != nil {
		return h.fail(c, err, "Bot", "fetch bot")
	}
	return c.JSON(b)
}

// UpsertBot handles POST /bots: 201 when the bot was created, 200 when an
// existing id was updated.
func (h *Handlers) UpsertBot(c *fiber.Ctx) error {
	var in models.BotInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Bot", "save bot")
	}
	b, created, err := h.store.UpsertBot(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "Bot", "save bot")
	}
	if created {
		c.Status(fiber.StatusCreated)
	}
	return c.JSON(b)
}

// DeleteBot handles DELETE /bots/:id. The bot's logs are kept.
func (h *Handlers) DeleteBot(c *fiber.Ctx) error {
	if err := h.store.DeleteBot(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err, "Bot", "delete bot")
	}
	return success(c)
}

// ListBotLogs handles GET /bots/:id/logs?limit=N.
func (h *Handlers) ListBotLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	logs, err := h.store.ListBotLogs(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return h.fail(c, err, "Bot", "fetch bot logs")
	}
	return c.JSON(logs)
}

// CreateBotLog handles POST /bots/:id/logs and bumps the bot's last run.
func (h *Handlers) CreateBotLog(c *fiber.Ctx) error {
	var in models.BotLogInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Bot", "create bot log")
	}
	l, err := h.store.AddBotLog(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err, "Bot", "create bot log")
	}
	return c.Status(fiber.StatusCreated).JSON(l)
}
