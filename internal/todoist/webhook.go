package todoist

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Todoist-Hmac-SHA256"

// Webhook event names.
const (
	EventItemAdded       = "item:added"
	EventItemUpdated     = "item:updated"
	EventItemCompleted   = "item:completed"
	EventItemUncompleted = "item:uncompleted"
	EventItemDeleted     = "item:deleted"
)

// WebhookEvent is a Todoist webhook delivery.
type WebhookEvent struct {
	EventName string          `json:"event_name"`
	UserID    string          `json:"user_id,omitempty"`
	EventData json.RawMessage `json:"event_data"`
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, perrors.Invalid("body", "is not valid JSON")
	}
	if ev.EventName == "" {
		return nil, perrors.Invalid("event_name", "is required")
	}
	return &ev, nil
}

// VerifySignature checks the webhook signature against the app client secret.
// An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return fmt.Errorf("missing %s header: %w", SignatureHeader, perrors.ErrUnauthorized)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("webhook signature mismatch: %w", perrors.ErrUnauthorized)
	}
	return nil
}

// HandleEvent applies a webhook event to the store. It reports whether the
// event type was recognised; unknown events are acknowledged and ignored.
func (s *Syncer) HandleEvent(ctx context.Context, ev *WebhookEvent) (bool, error) {
	log := s.logger.With().Str("event", ev.EventName).Logger()

	switch ev.EventName {
	case EventItemAdded, EventItemUpdated, EventItemCompleted, EventItemUncompleted, EventItemDeleted:
		s.metrics.RecordWebhook(ev.EventName)
	default:
		s.metrics.RecordWebhook(models.EventOther)
		log.Debug().Msg("ignoring todoist event")
		return false, nil
	}

	var task Task
	if err := json.Unmarshal(ev.EventData, &task); err != nil || task.ID == "" {
		return true, perrors.Invalid("event_data", "must carry a task with an id")
	}
	log = log.With().Str("todoist_task_id", task.ID).Logger()

	switch ev.EventName {
	case EventItemAdded, EventItemUpdated:
		if err := s.mirror.ApplyTodoistUpdate(ctx, ToExternal(task)); err != nil {
			return true, err
		}
	case EventItemCompleted:
		return true, s.setStatus(ctx, log, task.ID, models.TaskCompleted)
	case EventItemUncompleted:
		return true, s.setStatus(ctx, log, task.ID, models.TaskTodo)
	case EventItemDeleted:
		found, err := s.mirror.DeleteTodoistTask(ctx, task.ID)
		if err != nil {
			return true, err
		}
		if !found {
			log.Debug().Msg("deleted task was not mirrored")
		}
	}
	log.Info().Msg("applied todoist event")
	return true, nil
}

func (s *Syncer) setStatus(ctx context.Context, log zerolog.Logger, id string, status models.TaskStatus) error {
	found, err := s.mirror.SetTodoistTaskStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !found {
		log.Debug().Msg("status change for task that is not mirrored")
		return nil
	}
	log.Info().Str("status", string(status)).Msg("applied todoist event")
	return nil
}
