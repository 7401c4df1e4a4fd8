// Package todoist is the task-tracking integration: a REST client for the
// Todoist API, webhook decoding, and the sync that mirrors Todoist into the store.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/requestid"
)

// DefaultBaseURL is the Todoist REST API root.
const DefaultBaseURL = "https://api.todoist.com/api/v1"

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authenticator applies authentication to requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// BearerAuth authenticates with a personal API token.
type BearerAuth struct {
	Token string
}

func (b *BearerAuth) Apply(req *http.Request) error {
	if b.Token == "" {
		return fmt.Errorf("todoist: %w", perrors.ErrNotConfigured)
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Client wraps the Todoist REST API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	auth       Authenticator
	logger     zerolog.Logger
}

// NewClient creates a new Todoist API client.
func NewClient(baseURL string, auth Authenticator, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
		logger:     logger.With().Str("component", "todoist").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// do executes an authenticated API request. Non-2xx answers become *errors.APIError.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// Todoist deduplicates writes carrying the same request id.
	if id, ok := requestid.Lookup(ctx); ok && method != http.MethodGet {
		req.Header.Set("X-Request-Id", id)
	}

	if err := c.auth.Apply(req); err != nil {
		return nil, fmt.Errorf("applying auth: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &perrors.APIError{Service: "todoist", Message: "request failed", Err: err}
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("todoist request")

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, perrors.NewAPIError("todoist", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return resp, nil
}

// decodeResponse reads and decodes a JSON response.
func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
