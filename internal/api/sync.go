package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/p-blackswan/mission-control/internal/calendar"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

// syncCalendarDays is the window fetched by a manual sync.
const syncCalendarDays = 7

type syncOutcome struct {
	Success bool   `json:"success"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

func succeeded(n int) syncOutcome {
	return syncOutcome{Success: true, Count: &n}
}

// Sync handles POST /sync: a one-shot Todoist pull plus a calendar fetch.
// Each integration reports its own outcome; the request itself succeeds.
func (h *Handlers) Sync(c *fiber.Ctx) error {
	ctx := c.UserContext()
	results := map[string]syncOutcome{}

	res, err := h.syncer.Sync(ctx, "manual")
	switch {
	case errors.Is(err, perrors.ErrNotConfigured):
		results["todoist"] = syncOutcome{Error: "Todoist is not configured"}
	case err != nil:
		h.log(c).Error().Err(err).Msg("todoist sync failed")
		results["todoist"] = syncOutcome{Error: err.Error()}
	default:
		results["todoist"] = succeeded(res.Tasks)
	}

	events, source := h.calendar.Upcoming(ctx, syncCalendarDays)
	if source == calendar.SourceCLI {
		h.markCalendar(c, source)
		results["calendar"] = succeeded(len(events))
	} else {
		results["calendar"] = syncOutcome{Error: "calendar CLI " + string(source)}
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"timestamp": models.FormatTime(time.Now()),
		"results":   results,
	})
}

// SyncStatus handles GET /sync/status.
func (h *Handlers) SyncStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var (
		meta            *models.SyncMetadata
		tasks, projects int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		meta, err = h.store.SyncMetadata(gctx)
		return err
	})
	g.Go(func() (err error) {
		tasks, err = h.store.CountTasks(gctx)
		return err
	})
	g.Go(func() (err error) {
		projects, err = h.store.CountProjects(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return h.fail(c, err, "Sync status", "get sync status")
	}

	return c.JSON(fiber.Map{
		"lastTodoistSync":   meta.LastTodoistSync,
		"lastCalendarSync":  meta.LastCalendarSync,
		"todoistConfigured": h.syncer.Configured(),
		"calendarAvailable": h.calendar.Available(),
		"counts": fiber.Map{
			"tasks":    tasks,
			"projects": projects,
		},
	})
}
