package models

import "encoding/json"

// Worker report event types with special handling.
const (
	EventTaskFailed          = "TASK_FAILED"
	EventEscalationRequired  = "ESCALATION_REQUIRED"
	EventSupportDailyReport  = "SUPPORT_DAILY_REPORT"
	EventTaskCompleted       = "TASK_COMPLETED"
	DefaultOrchestrationPrio = "P2"

	// EventOther labels event types outside the known set in metrics.
	EventOther = "other"
)

// EventLabel returns eventType when it is a known event type and EventOther
// otherwise.
func EventLabel(eventType string) string {
	switch eventType {
	case EventTaskFailed, EventEscalationRequired, EventSupportDailyReport, EventTaskCompleted:
		return eventType
	}
	return EventOther
}

// OrchestrationStatus is the position of a task in the bot workflow:
// queued -> assigned -> running -> done | blocked.
type OrchestrationStatus string

const (
	OrchQueued   OrchestrationStatus = "queued"
	OrchAssigned OrchestrationStatus = "assigned"
	OrchRunning  OrchestrationStatus = "running"
	OrchBlocked  OrchestrationStatus = "blocked"
	OrchDone     OrchestrationStatus = "done"
)

func (s OrchestrationStatus) Valid() bool {
	switch s {
	case OrchQueued, OrchAssigned, OrchRunning, OrchBlocked, OrchDone:
		return true
	}
	return false
}

// OrchestrationTask is work handed to a bot.
type OrchestrationTask struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	Objective        *string             `json:"objective"`
	DefinitionOfDone *string             `json:"definition_of_done"`
	OwnerBot         *string             `json:"owner_bot"`
	Priority         string              `json:"priority"`
	Status           OrchestrationStatus `json:"status"`
	DueAt            *string             `json:"due_at"`
	Constraints      []string            `json:"constraints"`
	CreatedAt        string              `json:"created_at"`
	UpdatedAt        string              `json:"updated_at"`
}

// WorkerReport is an event a bot submits. Payload is kept verbatim.
type WorkerReport struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	BotID     *string         `json:"bot_id"`
	TaskID    *string         `json:"task_id"`
	Payload   json.RawMessage `json:"payload"`
	Ts        string          `json:"ts"`
	CreatedAt string          `json:"created_at"`
}

// EscalationStatus is open until a person resolves it.
type EscalationStatus string

const (
	EscalationOpen     EscalationStatus = "open"
	EscalationResolved EscalationStatus = "resolved"
)

func (s EscalationStatus) Valid() bool {
	return s == EscalationOpen || s == EscalationResolved
}

// Escalation is a failure that needs a human decision.
type Escalation struct {
	ID             string           `json:"id"`
	TaskID         *string          `json:"task_id"`
	BotID          *string          `json:"bot_id"`
	Reason         string           `json:"reason"`
	Options        []string         `json:"options"`
	Recommendation *string          `json:"recommendation"`
	Status         EscalationStatus `json:"status"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}
