package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/todoist"
)

// TodoistWebhook handles POST /webhooks/todoist. The route bypasses API auth;
// deliveries are authenticated by their HMAC signature when a client secret
// is configured.
func (h *Handlers) TodoistWebhook(c *fiber.Ctx) error {
	body := c.Body()
	if err := todoist.VerifySignature(h.cfg.TodoistClientSecret, body, c.Get(todoist.SignatureHeader)); err != nil {
		h.log(c).Warn().Err(err).Msg("rejected todoist webhook")
		h.metrics.RecordError("webhook", "signature")
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid webhook signature")
	}

	ev, err := todoist.ParseWebhook(body)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	h.log(c).Info().Str("event", ev.EventName).Msg("todoist webhook received")

	handled, err := h.syncer.HandleEvent(c.UserContext(), ev)
	if err != nil {
		if errors.Is(err, perrors.ErrInvalidInput) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		h.log(c).Error().Err(err).Str("event", ev.EventName).Msg("todoist webhook failed")
		h.metrics.RecordError("webhook", "apply")
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to process webhook")
	}
	return c.JSON(fiber.Map{"success": true, "handled": handled})
}
