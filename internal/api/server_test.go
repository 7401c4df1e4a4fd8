package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/mission-control/internal/calendar"
	"github.com/p-blackswan/mission-control/internal/config"
	"github.com/p-blackswan/mission-control/internal/db"
	"github.com/p-blackswan/mission-control/internal/escalation"
	"github.com/p-blackswan/mission-control/internal/health"
	"github.com/p-blackswan/mission-control/internal/metrics"
	"github.com/p-blackswan/mission-control/internal/models"
	"github.com/p-blackswan/mission-control/internal/orchestration"
	"github.com/p-blackswan/mission-control/internal/requestid"
	"github.com/p-blackswan/mission-control/internal/store"
	"github.com/p-blackswan/mission-control/internal/todoist"
)

type testEnv struct {
	app     *fiber.App
	db      *db.DB
	store   *store.Store
	metrics *metrics.Metrics
}

// newTestEnv builds the full API over a temporary SQLite database. todoistURL
// points the Todoist client at a fake server; empty leaves Todoist unconfigured.
func newTestEnv(t *testing.T, todoistURL string, tweak func(*config.Config)) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	dir := t.TempDir()

	cfg := &config.Config{
		Environment:       "test",
		AuthMode:          "none",
		DataDir:           dir,
		BotLogInlineLimit: 10,
	}
	if tweak != nil {
		tweak(cfg)
	}

	database, err := db.Open(context.Background(), db.Options{Dialect: db.DialectSQLite, DataDir: dir}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	st := store.New(database, logger)
	m := metrics.New()

	var (
		client *todoist.Client
		source todoist.Source
	)
	if todoistURL != "" {
		client = todoist.NewClient(todoistURL, &todoist.BearerAuth{Token: "test-token"}, 5*time.Second, logger)
		source = client
	}

	checker := health.NewChecker(logger)
	checker.Register(CheckDatabase, health.PingCheck(database))

	srv := NewServer(cfg, Deps{
		Store:         st,
		Todoist:       client,
		Syncer:        todoist.NewSyncer(source, st, m, logger),
		Calendar:      calendar.NewRunner(filepath.Join(dir, "no-such-gog"), time.Second, logger),
		Orchestration: orchestration.NewService(st, escalation.NewLogNotifier(logger), m, logger),
		Checker:       checker,
		Metrics:       m,
	}, logger)

	return &testEnv{app: srv.App(), db: database, store: st, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth_OK(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "sqlite", body["driver"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotContains(t, body, "hints")
}

func TestHealth_DegradedWhenDatabaseDown(t *testing.T) {
	env := newTestEnv(t, "", nil)
	require.NoError(t, env.db.Close())

	resp := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disconnected", body["database"])
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, body["hints"])
}

func TestReady_NotReadyWhenDatabaseDown(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, env.db.Close())
	resp = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProjects_CRUD(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodPost, "/projects", `{"name":"Launch","description":"v1 launch","priority":"high"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Project](t, resp)
	assert.Equal(t, "Launch", created.Name)
	assert.Equal(t, models.ProjectActive, created.Status)

	resp = env.do(t, http.MethodPatch, "/projects/"+created.ID, `{"progress":40}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Project](t, resp)
	assert.Equal(t, 40, updated.Progress)
	assert.Equal(t, "Launch", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "v1 launch", *updated.Description)
	assert.Equal(t, models.LevelHigh, updated.Priority)
	assert.Greater(t, updated.UpdatedAt, created.UpdatedAt)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	resp = env.do(t, http.MethodGet, "/projects?priority=high", "")
	list := decode[[]models.Project](t, resp)
	require.Len(t, list, 1)

	resp = env.do(t, http.MethodDelete, "/projects/"+created.ID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["success"])

	resp = env.do(t, http.MethodGet, "/projects/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Project not found", decode[map[string]string](t, resp)["error"])
}

func TestDelete_MissingReturns404(t *testing.T) {
	env := newTestEnv(t, "", nil)

	for _, path := range []string{
		"/projects/nope", "/tasks/nope", "/blockers/nope", "/research/nope", "/bots/nope",
	} {
		resp := env.do(t, http.MethodDelete, path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t, "", nil)

	tests := []struct {
		path string
		body string
	}{
		{"/projects", `{"description":"no name"}`},
		{"/projects", `{"name":"x","status":"unknown"}`},
		{"/tasks", `{"title":"x","priority":9}`},
		{"/blockers", `{"title":"x","severity":"fatal"}`},
		{"/research", `{}`},
		{"/bots", `{"status":"active"}`},
		{"/projects", `{not json`},
		{"/projects", ``},
	}
	for _, tt := range tests {
		resp := env.do(t, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s", tt.path, tt.body)
		assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])
	}
}

func TestUpdate_BlankRequiredFieldRejected(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodPost, "/projects", `{"name":"Ops"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[models.Project](t, resp).ID

	resp = env.do(t, http.MethodPatch, "/projects/"+id, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := decode[models.Project](t, env.do(t, http.MethodGet, "/projects/"+id, ""))
	assert.Equal(t, "Ops", got.Name)
}

func TestBlockers_SeverityOrder(t *testing.T) {
	env := newTestEnv(t, "", nil)

	for i, sev := range []string{"info", "blocking", "warning", "blocking"} {
		body := `{"title":"b` + string(rune('0'+i)) + `","severity":"` + sev + `"}`
		resp := env.do(t, http.MethodPost, "/blockers", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	blockers := decode[[]models.Blocker](t, env.do(t, http.MethodGet, "/blockers", ""))
	require.Len(t, blockers, 4)
	titles := make([]string, 0, len(blockers))
	for _, b := range blockers {
		titles = append(titles, b.Title)
	}
	assert.Equal(t, []string{"b3", "b1", "b2", "b0"}, titles)

	open := decode[[]models.Blocker](t, env.do(t, http.MethodGet, "/blockers?severity=warning", ""))
	require.Len(t, open, 1)
	assert.Equal(t, models.Severity("warning"), open[0].Severity)
}

func TestTasks_SyncNotConfigured(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodGet, "/tasks?sync=true", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/tasks", `{"title":"x","pushToTodoist":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTasks_SyncPullsFromTodoist(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tasks":
			io.WriteString(w, `[{"id":"td-1","content":"Write docs","priority":4,"labels":["docs"]},
				{"id":"td-2","content":"Ship","priority":1,"checked":true}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, upstream.URL, nil)

	resp := env.do(t, http.MethodGet, "/tasks?sync=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks := decode[[]models.Task](t, resp)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Write docs", tasks[0].Title)
	assert.Equal(t, 1, tasks[0].Priority)
	assert.Equal(t, []string{"docs"}, tasks[0].Labels)
	assert.Equal(t, models.TaskCompleted, tasks[1].Status)

	status := decode[map[string]any](t, env.do(t, http.MethodGet, "/sync/status", ""))
	assert.NotNil(t, status["lastTodoistSync"])
	assert.Equal(t, true, status["todoistConfigured"])
	assert.Equal(t, float64(2), status["counts"].(map[string]any)["tasks"])
}

func TestTasks_SyncUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, upstream.URL, nil)

	resp := env.do(t, http.MethodGet, "/tasks?sync=true", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "Failed to fetch tasks", body["error"])
	assert.Contains(t, body["details"], "502")
}

func TestTasks_PushToTodoist(t *testing.T) {
	var got todoist.CreateTaskRequest
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"td-99","content":"Call vendor","priority":3}`)
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, upstream.URL, nil)

	project := decode[models.Project](t, env.do(t, http.MethodPost, "/projects",
		`{"name":"Ops","todoistProjectId":"tp-7"}`))

	resp := env.do(t, http.MethodPost, "/tasks",
		`{"title":"Call vendor","priority":2,"projectId":"`+project.ID+`","pushToTodoist":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := decode[models.Task](t, resp)

	assert.Equal(t, "Call vendor", got.Content)
	assert.Equal(t, 3, got.Priority)
	assert.Equal(t, "tp-7", got.ProjectID)
	require.NotNil(t, task.TodoistTaskID)
	assert.Equal(t, "td-99", *task.TodoistTaskID)
	require.NotNil(t, task.URL)
	assert.Contains(t, *task.URL, "td-99")
	assert.Equal(t, 2, task.Priority)
}

func TestBots_UpsertAndLogs(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodPost, "/bots", `{"id":"digest-bot","name":"Digest","config":{"channel":"#ops"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bot := decode[models.Bot](t, resp)
	assert.Equal(t, models.BotPaused, bot.Status)
	assert.Equal(t, "#ops", bot.Config["channel"])

	resp = env.do(t, http.MethodPost, "/bots", `{"id":"digest-bot","status":"active"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bot = decode[models.Bot](t, resp)
	assert.Equal(t, models.BotActive, bot.Status)
	assert.Equal(t, "Digest", bot.Name)

	for _, msg := range []string{"started", "finished"} {
		resp = env.do(t, http.MethodPost, "/bots/digest-bot/logs", `{"message":"`+msg+`"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, "/bots/digest-bot/logs", `{"level":"fatal","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	logs := decode[[]models.BotLog](t, env.do(t, http.MethodGet, "/bots/digest-bot/logs?limit=1", ""))
	require.Len(t, logs, 1)
	assert.Equal(t, "finished", logs[0].Message)
	assert.Equal(t, models.LogInfo, logs[0].Level)

	bots := decode[[]models.Bot](t, env.do(t, http.MethodGet, "/bots", ""))
	require.Len(t, bots, 1)
	assert.Len(t, bots[0].Logs, 2)
	assert.NotNil(t, bots[0].LastRun)

	resp = env.do(t, http.MethodDelete, "/bots/digest-bot", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	logs = decode[[]models.BotLog](t, env.do(t, http.MethodGet, "/bots/digest-bot/logs", ""))
	assert.Len(t, logs, 2)
}

func TestOrchestration_FailedReportEscalates(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodPost, "/orchestration/tasks", `{"id":"t-1","title":"Nightly export","owner_bot":"exporter","priority":"P1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/orchestration/reports",
		`{"event_id":"ev-1","event_type":"TASK_FAILED","bot_id":"exporter","task_id":"t-1","payload":{"error_summary":"disk full","options":["retry","skip"]}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[orchestration.IngestResult](t, resp)
	assert.True(t, res.OK)
	require.NotNil(t, res.Escalation)
	assert.Equal(t, "disk full", res.Escalation.Reason)
	assert.Equal(t, models.EscalationOpen, res.Escalation.Status)

	resp = env.do(t, http.MethodPost, "/orchestration/reports",
		`{"event_type":"TASK_COMPLETED","bot_id":"exporter","task_id":"t-1","payload":{}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Nil(t, decode[orchestration.IngestResult](t, resp).Escalation)

	// Replays are acknowledged without a second escalation.
	resp = env.do(t, http.MethodPost, "/orchestration/reports",
		`{"event_id":"ev-1","event_type":"TASK_FAILED","payload":{"error_summary":"disk full"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[orchestration.IngestResult](t, resp).Duplicate)

	escalations := decode[[]models.Escalation](t, env.do(t, http.MethodGet, "/orchestration/escalations?status=open", ""))
	require.Len(t, escalations, 1)

	resp = env.do(t, http.MethodPatch, "/orchestration/escalations/"+escalations[0].ID, `{"status":"resolved"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	dash := decode[orchestration.Dashboard](t, env.do(t, http.MethodGet, "/orchestration/dashboard", ""))
	assert.True(t, dash.OK)
	assert.Equal(t, 1, dash.Stats.TasksTotal)
	assert.Equal(t, 0, dash.Stats.OpenEscalations)
	assert.Len(t, dash.Reports, 2)

	resp = env.do(t, http.MethodPatch, "/orchestration/tasks/t-1", `{"status":"done"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	digest := decode[orchestration.Digest](t, env.do(t, http.MethodGet, "/orchestration/digest", ""))
	assert.Equal(t, 1, digest.Wins)

	resp = env.do(t, http.MethodGet, "/orchestration/escalations?status=closed", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrchestration_ReportTimestampsNormalized(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodPost, "/orchestration/reports",
		`{"event_type":"SUPPORT_DAILY_REPORT","bot_id":"old","ts":"2026-10-19T10:00:00+02:00","payload":{"summary":"earlier"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "2026-10-19T08:00:00.000000000Z", decode[orchestration.IngestResult](t, resp).Report.Ts)

	resp = env.do(t, http.MethodPost, "/orchestration/reports",
		`{"event_type":"SUPPORT_DAILY_REPORT","bot_id":"new","ts":"2026-10-19T09:00:00Z","payload":{"summary":"later"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	report := decode[orchestration.SupportReport](t, env.do(t, http.MethodGet, "/orchestration/support-report", ""))
	require.NotNil(t, report.BotID)
	assert.Equal(t, "new", *report.BotID)
	assert.Equal(t, "later", report.Summary)

	resp = env.do(t, http.MethodPost, "/orchestration/reports", `{"event_type":"HEARTBEAT","ts":"last tuesday"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrchestration_DuplicateReturnsStoredReport(t *testing.T) {
	env := newTestEnv(t, "", nil)
	body := `{"event_id":"ev-9","event_type":"HEARTBEAT","payload":{"n":1}}`

	resp := env.do(t, http.MethodPost, "/orchestration/reports", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[orchestration.IngestResult](t, resp)

	resp = env.do(t, http.MethodPost, "/orchestration/reports", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[orchestration.IngestResult](t, resp)
	assert.True(t, second.Duplicate)
	require.NotNil(t, second.Report)
	assert.NotEmpty(t, second.Report.CreatedAt)
	assert.Equal(t, first.Report.CreatedAt, second.Report.CreatedAt)
}

func TestMetrics_CallerSuppliedNamesShareOneSeries(t *testing.T) {
	env := newTestEnv(t, "", nil)

	for i := 0; i < 50; i++ {
		resp := env.do(t, http.MethodPost, "/orchestration/reports", fmt.Sprintf(`{"event_type":"CUSTOM_%d"}`, i))
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		hook := fmt.Sprintf(`{"event_name":"made:up:%d","event_data":{}}`, i)
		resp = env.do(t, http.MethodPost, "/webhooks/todoist", hook)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(env.metrics.WorkerReportsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(env.metrics.WebhookEventsTotal))
	assert.Equal(t, 50.0, testutil.ToFloat64(env.metrics.WebhookEventsTotal.WithLabelValues(models.EventOther)))
}

func TestOrchestration_DashboardOutage(t *testing.T) {
	env := newTestEnv(t, "", nil)
	require.NoError(t, env.db.Close())

	resp := env.do(t, http.MethodGet, "/orchestration/dashboard", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decode[orchestration.Dashboard](t, resp)
	assert.False(t, dash.OK)
	assert.Equal(t, orchestration.Stats{}, dash.Stats)
	assert.NotEmpty(t, dash.Details)

	resp = env.do(t, http.MethodGet, "/orchestration/support-report", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Support report API unavailable", decode[map[string]any](t, resp)["summary"])

	resp = env.do(t, http.MethodGet, "/projects", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to fetch projects", decode[map[string]string](t, resp)["error"])
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTodoistWebhook(t *testing.T) {
	const secret = "client-secret"
	env := newTestEnv(t, "", func(c *config.Config) {
		c.TodoistClientSecret = secret
		c.AuthMode = "api-key"
		c.APIKey = "k"
	})

	added := `{"event_name":"item:added","event_data":{"id":"td-5","content":"Review PR","priority":3}}`
	resp := env.do(t, http.MethodPost, "/webhooks/todoist", added, todoist.SignatureHeader, "bogus")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/webhooks/todoist", added, todoist.SignatureHeader, sign(secret, added))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["handled"])

	completed := `{"event_name":"item:completed","event_data":{"id":"td-5"}}`
	resp = env.do(t, http.MethodPost, "/webhooks/todoist", completed, todoist.SignatureHeader, sign(secret, completed))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tasks, err := env.store.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Review PR", tasks[0].Title)
	assert.Equal(t, 2, tasks[0].Priority)
	assert.Equal(t, models.TaskCompleted, tasks[0].Status)

	unknown := `{"event_name":"note:added","event_data":{}}`
	resp = env.do(t, http.MethodPost, "/webhooks/todoist", unknown, todoist.SignatureHeader, sign(secret, unknown))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode[map[string]any](t, resp)["handled"])

	resp = env.do(t, http.MethodPost, "/webhooks/todoist", `nope`, todoist.SignatureHeader, sign(secret, `nope`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSync_ReportsEachIntegration(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["success"])

	results := body["results"].(map[string]any)
	assert.Equal(t, false, results["todoist"].(map[string]any)["success"])
	assert.Equal(t, "Todoist is not configured", results["todoist"].(map[string]any)["error"])
	assert.Equal(t, false, results["calendar"].(map[string]any)["success"])
}

func TestCalendar_UnavailableIsEmpty(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodGet, "/calendar/events?range=week", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(calendar.SourceUnavailable), resp.Header.Get(sourceHeader))
	assert.Empty(t, decode[[]calendar.Event](t, resp))
}

func TestAuth_APIKey(t *testing.T) {
	env := newTestEnv(t, "", func(c *config.Config) {
		c.AuthMode = "api-key"
		c.APIKey = "secret-key"
	})

	resp := env.do(t, http.MethodGet, "/projects", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/projects", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/projects", "", "Authorization", "Bearer secret-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/projects", "", "X-API-Key", "secret-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Probes stay open.
	resp = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_JWT(t *testing.T) {
	const secret = "jwt-secret"
	env := newTestEnv(t, "", func(c *config.Config) {
		c.AuthMode = "jwt"
		c.JWTSecret = secret
	})

	mint := func(claims jwt.MapClaims, key string) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return "Bearer " + tok
	}
	exp := time.Now().Add(time.Hour).Unix()

	resp := env.do(t, http.MethodGet, "/bots", "", "Authorization", mint(jwt.MapClaims{"sub": "ops", "exp": exp}, secret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/bots", "", "Authorization", mint(jwt.MapClaims{"sub": "ops", "exp": exp}, "other"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/bots", "", "Authorization", mint(jwt.MapClaims{"exp": exp}, secret))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired := time.Now().Add(-time.Hour).Unix()
	resp = env.do(t, http.MethodGet, "/bots", "", "Authorization", mint(jwt.MapClaims{"sub": "ops", "exp": expired}, secret))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestID_Echoed(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodGet, "/projects", "")
	assert.NotEmpty(t, resp.Header.Get(requestid.Header))

	const id = "8a6e0804-2bd0-4672-b79d-d97027f9071a"
	resp = env.do(t, http.MethodGet, "/projects", "", requestid.Header, id)
	assert.Equal(t, id, resp.Header.Get(requestid.Header))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "", nil)

	env.do(t, http.MethodGet, "/projects", "")
	resp := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `missioncontrol_http_requests_total{method="GET",route="/projects",status="200"}`)
}

func TestPanicIsCountedAsServerError(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.app.Get("/explode", func(c *fiber.Ctx) error {
		panic("kaboom")
	})

	resp := env.do(t, http.MethodGet, "/explode", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", decode[map[string]string](t, resp)["error"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/explode", "500")))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp := env.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", decode[map[string]string](t, resp)["error"])
}
