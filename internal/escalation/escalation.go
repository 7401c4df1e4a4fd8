// Package escalation notifies people when a bot needs a human decision.
// Slack (incoming webhook or bot token) and Telegram are supported.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/mission-control/internal/models"
)

// Level describes the urgency of an escalation.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Notice is the message sent to a human.
type Notice struct {
	ID             string
	Level          Level
	Title          string
	Message        string
	Source         string // bot that reported the event
	TaskID         string
	Options        []string
	Recommendation string
}

// FromEscalation builds a Notice for an escalation derived from a report of eventType.
func FromEscalation(e models.Escalation, eventType string) Notice {
	n := Notice{
		ID:      e.ID,
		Level:   LevelWarning,
		Title:   "Escalation required",
		Message: e.Reason,
		Options: e.Options,
	}
	if eventType == models.EventTaskFailed {
		n.Level = LevelCritical
		n.Title = "Task failed"
	}
	if e.BotID != nil {
		n.Source = *e.BotID
	}
	if e.TaskID != nil {
		n.TaskID = *e.TaskID
	}
	if e.Recommendation != nil {
		n.Recommendation = *e.Recommendation
	}
	return n
}

// Text renders the notice as Markdown.
func (n Notice) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *[%s] %s*\n\n%s", levelEmoji(n.Level), n.Level, n.Title, n.Message)
	if n.TaskID != "" {
		fmt.Fprintf(&b, "\n\nTask: `%s`", n.TaskID)
	}
	if len(n.Options) > 0 {
		b.WriteString("\n\nOptions:")
		for _, o := range n.Options {
			b.WriteString("\n• " + o)
		}
	}
	if n.Recommendation != "" {
		fmt.Fprintf(&b, "\n\nRecommendation: %s", n.Recommendation)
	}
	if n.Source != "" {
		fmt.Fprintf(&b, "\n\n_Source: %s_", n.Source)
	}
	return b.String()
}

// Notifier sends escalation notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// TelegramNotifier sends escalations via Telegram Bot API.
type TelegramNotifier struct {
	chatID  int64
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewTelegramNotifier creates a notifier that sends to a specific Telegram chat.
func NewTelegramNotifier(token string, chatID int64, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		chatID:  chatID,
		baseURL: "https://api.telegram.org/bot" + token,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Notify sends the notice as a Telegram message.
func (t *TelegramNotifier) Notify(ctx context.Context, n Notice) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       n.Text(),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("escalation marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("escalation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("escalation send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("escalation send: telegram returned %d", resp.StatusCode)
	}

	t.logger.Info().
		Str("level", string(n.Level)).
		Str("escalation_id", n.ID).
		Int64("chat_id", t.chatID).
		Msg("escalation sent")
	return nil
}

// MultiNotifier fans out to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(ns ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: ns}
}

// Notify calls every notifier and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, nt := range m.notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of fan-out targets.
func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

// LogNotifier logs escalations (useful for testing/dev).
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "escalation").Logger()}
}

func (l *LogNotifier) Notify(_ context.Context, n Notice) error {
	l.logger.Warn().
		Str("escalation_id", n.ID).
		Str("level", string(n.Level)).
		Str("title", n.Title).
		Str("reason", n.Message).
		Str("bot_id", n.Source).
		Str("task_id", n.TaskID).
		Msg("escalation opened")
	return nil
}

func levelEmoji(l Level) string {
	switch l {
	case LevelCritical:
		return "🚨"
	case LevelWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
