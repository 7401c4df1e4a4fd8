package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/mission-control/internal/models"
	"github.com/p-blackswan/mission-control/internal/store"
)

// ListProjects handles GET /projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects, err := h.store.ListProjects(c.UserContext(), store.ProjectFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	})
	if err != nil {
		return h.fail(c, err, "Project", "fetch projects")
	}
	return c.JSON(projects)
}

// GetProject handles GET /projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	p, err := h.store.GetProject(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Project", "fetch project")
	}
	return c.JSON(p)
}

// CreateProject handles POST /projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var in models.ProjectInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Project", "create project")
	}
	p, err := h.store.CreateProject(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "Project", "create project")
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// UpdateProject handles PATCH /projects/:id.
func (h *Handlers) UpdateProject(c *fiber.Ctx) error {
	var in models.ProjectInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Project", "update project")
	}
	p, err := h.store.UpdateProject(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err, "Project", "update project")
	}
	return c.JSON(p)
}

// DeleteProject handles DELETE /projects/:id.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	if err := h.store.DeleteProject(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err, "Project", "delete project")
	}
	return success(c)
}
