package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/mission-control/internal/models"
	"github.com/p-blackswan/mission-control/internal/store"
)

func (h *Handlers) ListResearch(c *fiber.Ctx) error {
	items, err := h.store.ListResearch(c.UserContext(), store.ResearchFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	})
	if err != nil {
		return h.fail(c, err, "Research item", "fetch research items")
	}
	return c.JSON(items)
}

func (h *Handlers) GetResearch(c *fiber.Ctx) error {
	item, err := h.store.GetResearch(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Research item", "fetch research item")
	}
	return c.JSON(item)
}

func (h *Handlers) CreateResearch(c *fiber.Ctx) error {
	var in models.ResearchInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Research item", "create research item")
	}
	item, err := h.store.CreateResearch(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "Research item", "create research item")
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *Handlers) UpdateResearch(c *fiber.Ctx) error {
	var in models.ResearchInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Research item", "update research item")
	}
	item, err := h.store.UpdateResearch(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err, "Research item", "update research item")
	}
	return c.JSON(item)
}

func (h *Handlers) DeleteResearch(c *fiber.Ctx) error {
	if err := h.store.DeleteResearch(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err, "Research item", "delete research item")
	}
	return success(c)
}
