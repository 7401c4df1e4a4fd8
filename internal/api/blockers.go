package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/mission-control/internal/models"
	"github.com/p-blackswan/mission-control/internal/store"
)

func (h *Handlers) ListBlockers(c *fiber.Ctx) error {
	blockers, err := h.store.ListBlockers(c.UserContext(), store.BlockerFilter{
		Status:   c.Query("status"),
		Severity: c.Query("severity"),
	})
	if err != nil {
		return h.fail(c, err, "Blocker", "fetch blockers")
	}
	return c.JSON(blockers)
}

func (h *Handlers) GetBlocker(c *fiber.Ctx) error {
	b, err := h.store.GetBlocker(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Blocker", "fetch blocker")
	}
	return c.JSON(b)
}

func (h *Handlers) CreateBlocker(c *fiber.Ctx) error {
	var in models.BlockerInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Blocker", "create blocker")
	}
	b, err := h.store.CreateBlocker(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "Blocker", "create blocker")
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (h *Handlers) UpdateBlocker(c *fiber.Ctx) error {
	var in models.BlockerInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Blocker", "update blocker")
	}
	b, err := h.store.UpdateBlocker(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err, "Blocker", "update blocker")
	}
	return c.JSON(b)
}

func (h *Handlers) DeleteBlocker(c *fiber.Ctx) error {
	if err := h.store.DeleteBlocker(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err, "Blocker", "delete blocker")
	}
	return success(c)
}
