package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/mission-control/internal/models"
)

// ListOrchestrationTasks handles GET /orchestration/tasks.
func (h *Handlers) ListOrchestrationTasks(c *fiber.Ctx) error {
	tasks, err := h.store.ListOrchestrationTasks(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Orchestration task", "fetch orchestration tasks")
	}
	return c.JSON(tasks)
}

// CreateOrchestrationTask handles POST /orchestration/tasks. A client may
// supply its own id.
func (h *Handlers) CreateOrchestrationTask(c *fiber.Ctx) error {
	var in models.OrchestrationTaskInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Orchestration task", "create orchestration task")
	}
	t, err := h.store.CreateOrchestrationTask(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "Orchestration task", "create orchestration task")
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// UpdateOrchestrationTask handles PATCH /orchestration/tasks/:id.
func (h *Handlers) UpdateOrchestrationTask(c *fiber.Ctx) error {
	var in models.OrchestrationTaskInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Orchestration task", "update orchestration task")
	}
	t, err := h.store.UpdateOrchestrationTask(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err, "Orchestration task", "update orchestration task")
	}
	return c.JSON(t)
}

// ListReports handles GET /orchestration/reports.
func (h *Handlers) ListReports(c *fiber.Ctx) error {
	reports, err := h.store.ListReports(c.UserContext(), reportListLimit)
	if err != nil {
		return h.fail(c, err, "Report", "fetch reports")
	}
	return c.JSON(reports)
}

// CreateReport handles POST /orchestration/reports.
func (h *Handlers) CreateReport(c *fiber.Ctx) error {
	var in models.ReportInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Report", "create report")
	}
	res, err := h.orch.IngestReport(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "Report", "create report")
	}
	if res.Duplicate {
		return c.JSON(res)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ListEscalations handles GET /orchestration/escalations?status=open|resolved.
func (h *Handlers) ListEscalations(c *fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && !models.EscalationStatus(status).Valid() {
		return errorJSON(c, fiber.StatusBadRequest, "status must be open or resolved")
	}
	escalations, err := h.store.ListEscalations(c.UserContext(), status, 0)
	if err != nil {
		return h.fail(c, err, "Escalation", "fetch escalations")
	}
	return c.JSON(escalations)
}

// UpdateEscalation handles PATCH /orchestration/escalations/:id, the only
// way an escalation gets resolved.
func (h *Handlers) UpdateEscalation(c *fiber.Ctx) error {
	var in models.EscalationUpdate
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Escalation", "update escalation")
	}
	e, err := h.store.UpdateEscalation(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err, "Escalation", "update escalation")
	}
	return c.JSON(e)
}

// Dashboard handles GET /orchestration/dashboard. Always 200.
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	return c.JSON(h.orch.Dashboard(c.UserContext()))
}

// Digest handles GET /orchestration/digest.
func (h *Handlers) Digest(c *fiber.Ctx) error {
	d, err := h.orch.Digest(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Digest", "build digest")
	}
	return c.JSON(d)
}

// SupportReport handles GET /orchestration/support-report. Always 200.
func (h *Handlers) SupportReport(c *fiber.Ctx) error {
	return c.JSON(h.orch.SupportReport(c.UserContext()))
}
