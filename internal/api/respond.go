package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
)

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func errorDetails(c *fiber.Ctx, status int, msg string, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": msg, "details": err.Error()})
}

// fail maps a store or integration error to a response. resource names the
// entity for 404s ("Project"); action completes "Failed to ..." for 500s.
func (h *Handlers) fail(c *fiber.Ctx, err error, resource, action string) error {
	switch status := perrors.HTTPStatus(err); status {
	case fiber.StatusNotFound:
		return errorJSON(c, status, resource+" not found")
	case fiber.StatusBadRequest, fiber.StatusUnauthorized, fiber.StatusServiceUnavailable:
		return errorJSON(c, status, err.Error())
	}
	h.log(c).Error().Err(err).Str("action", action).Msg("request failed")
	h.metrics.RecordError("api", action)
	return errorJSON(c, fiber.StatusInternalServerError, "Failed to "+action)
}

// parseBody decodes a JSON body regardless of Content-Type; bots and
// webhooks do not always send one.
func parseBody(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(body) == 0 {
		return perrors.Invalid("body", "is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return perrors.Invalid("body", "is not valid JSON: "+err.Error())
	}
	return nil
}

func success(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true})
}
