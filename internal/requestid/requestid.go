// Package requestid provides request ID propagation via context.
package requestid

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Header carries the request ID in and out of the API.
const Header = "X-Request-ID"

type ctxKey struct{}

// WithRequestID returns a context with the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Lookup returns the request ID stored in ctx, if any.
func Lookup(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// FromContext extracts the request ID from context, or generates a new one.
func FromContext(ctx context.Context) string {
	if id, ok := Lookup(ctx); ok {
		return id
	}
	return uuid.New().String()
}

// New generates a new request ID and returns the enriched context and ID.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	return WithRequestID(ctx, id), id
}

// Middleware assigns every request an ID, reusing a well-formed inbound
// X-Request-ID. The ID is echoed in the response, stored in Locals and
// attached to the request's user context.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(Header, id)
		c.Locals("request_id", id)
		c.SetUserContext(WithRequestID(c.UserContext(), id))
		return c.Next()
	}
}

// Logger returns base annotated with the request ID from ctx, if any.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id, ok := Lookup(ctx); ok {
		return base.With().Str("request_id", id).Logger()
	}
	return base
}
