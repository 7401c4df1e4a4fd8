package api

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Mode      string // "none", "api-key", "jwt"
	APIKey    string
	JWTSecret string
}

// Principal is the authenticated caller, stored in Locals("principal").
type Principal struct {
	Subject string
	Roles   []string
	Source  string // "api_key", "jwt" or "anonymous"
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// NewAuthMiddleware returns a Fiber middleware that validates the caller.
// API keys are accepted as a Bearer token or in X-API-Key.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Mode == "" || cfg.Mode == "none" {
			c.Locals("principal", Principal{Subject: "anonymous", Source: "anonymous"})
			return c.Next()
		}

		// Probes, scraping, preflight and signed webhooks skip auth
		if isPublic(c) {
			return c.Next()
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			token = c.Get("X-API-Key")
		}
		if token == "" {
			return unauthorized(c, "Authorization header is required")
		}

		var (
			p   Principal
			err error
		)
		switch cfg.Mode {
		case "api-key":
			p, err = authenticateAPIKey(token, cfg.APIKey)
		case "jwt":
			p, err = authenticateJWT(token, cfg.JWTSecret)
		default:
			err = errors.New("unsupported auth mode")
		}
		if err != nil {
			logger.Warn().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("unauthorized request")
			return unauthorized(c, "Invalid credentials")
		}

		c.Locals("principal", p)
		return c.Next()
	}
}

func isPublic(c *fiber.Ctx) bool {
	if c.Method() == fiber.MethodOptions {
		return true
	}
	path := c.Path()
	return path == "/health" || path == "/ready" || path == "/metrics" ||
		strings.HasPrefix(path, "/webhooks/")
}

func authenticateAPIKey(token, key string) (Principal, error) {
	if key == "" {
		return Principal{}, errors.New("api key not configured")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
		return Principal{}, errors.New("api key mismatch")
	}
	return Principal{Subject: "api-key", Source: "api_key"}, nil
}

func authenticateJWT(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{Subject: claims.Subject, Roles: claims.Roles, Source: "jwt"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}
