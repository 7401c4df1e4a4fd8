package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/mission-control/internal/models"
)

func strPtr(s string) *string { return &s }

func sampleNotice() Notice {
	return FromEscalation(models.Escalation{
		ID:             "esc-1",
		TaskID:         strPtr("task-9"),
		BotID:          strPtr("bot-2"),
		Reason:         "deploy failed",
		Options:        []string{"retry", "rollback"},
		Recommendation: strPtr("rollback"),
		Status:         models.EscalationOpen,
	}, models.EventTaskFailed)
}

func TestFromEscalation(t *testing.T) {
	n := sampleNotice()
	assert.Equal(t, LevelCritical, n.Level)
	assert.Equal(t, "Task failed", n.Title)
	assert.Equal(t, "deploy failed", n.Message)
	assert.Equal(t, "bot-2", n.Source)
	assert.Equal(t, "task-9", n.TaskID)
	assert.Equal(t, "rollback", n.Recommendation)

	plain := FromEscalation(models.Escalation{Reason: "need input"}, models.EventEscalationRequired)
	assert.Equal(t, LevelWarning, plain.Level)
	assert.Empty(t, plain.Source)
}

func TestNoticeText(t *testing.T) {
	text := sampleNotice().Text()
	assert.Contains(t, text, "🚨 *[critical] Task failed*")
	assert.Contains(t, text, "deploy failed")
	assert.Contains(t, text, "• retry")
	assert.Contains(t, text, "Recommendation: rollback")
	assert.Contains(t, text, "_Source: bot-2_")
}

func TestLogNotifier_Notify(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), sampleNotice()))
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Notice) error { return f.err }

type countingNotifier struct{ calls int }

func (c *countingNotifier) Notify(context.Context, Notice) error {
	c.calls++
	return nil
}

func TestMultiNotifier_AllCalled(t *testing.T) {
	c1, c2 := &countingNotifier{}, &countingNotifier{}
	boom := errors.New("boom")

	multi := NewMultiNotifier(c1, failingNotifier{err: boom}, c2)
	err := multi.Notify(context.Background(), sampleNotice())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c1.calls)
	assert.Equal(t, 1, c2.calls)
	assert.Equal(t, 3, multi.Len())

	assert.NoError(t, NewMultiNotifier().Notify(context.Background(), sampleNotice()))
}

func TestSlackWebhookNotifier(t *testing.T) {
	var got slack.WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	n := NewSlackWebhookNotifier(server.URL, zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), sampleNotice()))

	assert.Equal(t, "🚨 Task failed", got.Text)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "danger", got.Attachments[0].Color)
	assert.Equal(t, "deploy failed", got.Attachments[0].Text)
	require.Len(t, got.Attachments[0].Fields, 4)
	assert.Equal(t, "retry\nrollback", got.Attachments[0].Fields[2].Value)
}

func TestSlackWebhookNotifier_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	n := NewSlackWebhookNotifier(server.URL, zerolog.Nop())
	assert.Error(t, n.Notify(context.Background(), sampleNotice()))
}

type fakeSlack struct {
	channel string
	values  map[string]string
	err     error
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channel = channelID
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.values = map[string]string{}
	for k := range values {
		f.values[k] = values.Get(k)
	}
	return channelID, "1700000000.000100", f.err
}

func TestSlackNotifier(t *testing.T) {
	api := &fakeSlack{}
	n := NewSlackNotifier(api, "C123", zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), sampleNotice()))

	assert.Equal(t, "C123", api.channel)
	assert.Equal(t, "Task failed: deploy failed", api.values["text"])
	assert.Contains(t, api.values["blocks"], "deploy failed")
	assert.Contains(t, api.values["blocks"], "esc-1")

	api.err = errors.New("channel_not_found")
	assert.Error(t, n.Notify(context.Background(), sampleNotice()))
}

func TestTelegramNotifier(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("tok", 42, zerolog.Nop())
	n.baseURL = server.URL
	require.NoError(t, n.Notify(context.Background(), sampleNotice()))
	assert.Equal(t, float64(42), body["chat_id"])
	assert.Equal(t, "Markdown", body["parse_mode"])
	assert.Contains(t, body["text"], "deploy failed")
}

func TestLevelEmoji(t *testing.T) {
	assert.Equal(t, "🚨", levelEmoji(LevelCritical))
	assert.Equal(t, "⚠️", levelEmoji(LevelWarning))
	assert.Equal(t, "ℹ️", levelEmoji(LevelInfo))
	assert.Equal(t, "ℹ️", levelEmoji("unknown"))
}
