package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/mission-control/internal/calendar"
)

// sourceHeader tells the client whether calendar data is live or fallback.
const sourceHeader = "X-Calendar-Source"

// CalendarEvents handles GET /calendar/events?range=today|week|upcoming.
// It never fails; CLI problems degrade to empty or fallback events.
func (h *Handlers) CalendarEvents(c *fiber.Ctx) error {
	events, source := h.calendar.Range(c.UserContext(), c.Query("range", "today"))
	h.markCalendar(c, source)
	c.Set(sourceHeader, string(source))
	return c.JSON(events)
}

// Calendars handles GET /calendar/calendars.
func (h *Handlers) Calendars(c *fiber.Ctx) error {
	cals, source := h.calendar.Calendars(c.UserContext())
	c.Set(sourceHeader, string(source))
	return c.JSON(cals)
}

func (h *Handlers) markCalendar(c *fiber.Ctx, source calendar.Source) {
	if source != calendar.SourceCLI {
		return
	}
	if _, err := h.store.MarkCalendarSync(c.UserContext()); err != nil {
		h.log(c).Warn().Err(err).Msg("failed to record calendar sync")
	}
}
