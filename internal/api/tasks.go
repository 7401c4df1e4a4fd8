package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
	"github.com/p-blackswan/mission-control/internal/store"
	"github.com/p-blackswan/mission-control/internal/todoist"
)

// ListTasks handles GET /tasks. With sync=true the Todoist tasks are pulled
// into the local table first.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if c.QueryBool("sync") {
		if _, err := h.syncer.PullTasks(ctx); err != nil {
			if errors.Is(err, perrors.ErrNotConfigured) {
				return errorJSON(c, fiber.StatusServiceUnavailable, "Todoist is not configured")
			}
			h.log(c).Error().Err(err).Msg("todoist pull failed")
			return errorDetails(c, fiber.StatusInternalServerError, "Failed to fetch tasks", err)
		}
	}

	tasks, err := h.store.ListTasks(ctx, store.TaskFilter{
		Status:    c.Query("status"),
		ProjectID: c.Query("projectId"),
	})
	if err != nil {
		return h.fail(c, err, "Task", "fetch tasks")
	}
	return c.JSON(tasks)
}

// GetTask handles GET /tasks/:id.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	t, err := h.store.GetTask(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Task", "fetch task")
	}
	return c.JSON(t)
}

// CreateTask handles POST /tasks. pushToTodoist creates the task upstream
// first and stores its Todoist id and link.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	var in models.TaskInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Task", "create task")
	}

	if in.PushToTodoist {
		if h.todoist == nil {
			return errorJSON(c, fiber.StatusServiceUnavailable, "Todoist is not configured")
		}
		if err := in.Validate(true); err != nil {
			return h.fail(c, err, "Task", "create task")
		}
		remote, err := h.todoist.CreateTask(c.UserContext(), h.todoistRequest(c, in))
		if err != nil {
			h.log(c).Error().Err(err).Msg("todoist create failed")
			return errorDetails(c, fiber.StatusInternalServerError, "Failed to create task in Todoist", err)
		}
		in.TodoistTaskID = &remote.ID
		if in.URL == nil {
			link := remote.Link()
			in.URL = &link
		}
	}

	t, err := h.store.CreateTask(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err, "Task", "create task")
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handlers) todoistRequest(c *fiber.Ctx, in models.TaskInput) todoist.CreateTaskRequest {
	priority := models.TaskPriorityLowest
	if in.Priority != nil {
		priority = *in.Priority
	}
	req := todoist.CreateTaskRequest{
		Content:  *in.Title,
		Priority: todoist.MapPriority(priority), // the scales are mirror images
		Labels:   in.Labels,
	}
	if in.Description != nil {
		req.Description = *in.Description
	}
	if in.DueDate != nil {
		req.DueDate = *in.DueDate
	}
	if in.ProjectID != nil {
		// Unknown local projects are not an error; the task lands in the inbox.
		if p, err := h.store.GetProject(c.UserContext(), *in.ProjectID); err == nil && p.TodoistProjectID != nil {
			req.ProjectID = *p.TodoistProjectID
		}
	}
	return req
}

// UpdateTask handles PATCH /tasks/:id.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	var in models.TaskInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err, "Task", "update task")
	}
	t, err := h.store.UpdateTask(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err, "Task", "update task")
	}
	return c.JSON(t)
}

// DeleteTask handles DELETE /tasks/:id.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	if err := h.store.DeleteTask(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err, "Task", "delete task")
	}
	return success(c)
}
