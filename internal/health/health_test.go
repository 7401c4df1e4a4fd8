package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(ctx context.Context) Result { return OK() }

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("database", ok)
	c.Register("calendar", ok)

	assert.Equal(t, StatusOK, Overall(c.RunAll(context.Background())))
	assert.Equal(t, []string{"calendar", "database"}, c.Names())
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("database", func(ctx context.Context) Result { return Down(errors.New("connection refused")) })
	c.Register("calendar", ok)

	results := c.RunAll(context.Background())
	assert.Equal(t, StatusDegraded, Overall(results))
	assert.Equal(t, "connection refused", results["database"].Error)
}

func TestChecker_Degraded_StillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("calendar", func(ctx context.Context) Result { return Result{Status: StatusDegraded} })

	assert.Equal(t, StatusOK, Overall(c.RunAll(context.Background())))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	results := c.RunAll(context.Background())
	assert.Empty(t, results)
	assert.Equal(t, StatusOK, Overall(results))
}

func TestChecker_TimeoutReachesCheck(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.timeout = 20 * time.Millisecond
	c.Register("slow", func(ctx context.Context) Result {
		<-ctx.Done()
		return Down(ctx.Err())
	})

	results := c.RunAll(context.Background())
	require.Contains(t, results, "slow")
	assert.Equal(t, StatusDown, results["slow"].Status)
}

func TestReadinessHandler_Healthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("svc", ok)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ready")
}

func TestReadinessHandler_NotReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("svc", func(ctx context.Context) Result { return Down(nil) })

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPingCheck(t *testing.T) {
	assert.Equal(t, OK(), PingCheck(fakePinger{})(context.Background()))

	r := PingCheck(fakePinger{err: errors.New("closed")})(context.Background())
	assert.Equal(t, StatusDown, r.Status)
	assert.Equal(t, "closed", r.Error)
}
