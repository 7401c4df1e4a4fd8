package models

import (
	"encoding/json"
	"strings"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
)

// Input structs double as create and partial-update bodies: a nil field is
// "not supplied". Create fills defaults for nil fields; update leaves the
// stored value in place.

// ProjectInput is the body of POST /projects and PATCH /projects/{id}.
type ProjectInput struct {
	Name             *string        `json:"name"`
	Description      *string        `json:"description"`
	Status           *ProjectStatus `json:"status"`
	Priority         *Level         `json:"priority"`
	Progress         *int           `json:"progress"`
	TodoistProjectID *string        `json:"todoistProjectId"`
	DueDate          *string        `json:"dueDate"`
}

// Validate checks field values. create additionally requires a name; an
// update may omit it but not blank it.
func (in *ProjectInput) Validate(create bool) error {
	if missing(create, in.Name) {
		return perrors.Invalid("name", "is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		return perrors.Invalid("status", "is not a valid project status")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return perrors.Invalid("priority", "must be high, medium or low")
	}
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > 100) {
		return perrors.Invalid("progress", "must be between 0 and 100")
	}
	return nil
}

// TaskInput is the body of POST /tasks and PATCH /tasks/{id}.
type TaskInput struct {
	Title         *string     `json:"title"`
	Description   *string     `json:"description"`
	Status        *TaskStatus `json:"status"`
	Priority      *int        `json:"priority"`
	ProjectID     *string     `json:"projectId"`
	TodoistTaskID *string     `json:"todoistTaskId"`
	DueDate       *string     `json:"dueDate"`
	Labels        []string    `json:"labels"`
	URL           *string     `json:"url"`
	// PushToTodoist creates the task in Todoist before storing it locally.
	PushToTodoist bool `json:"pushToTodoist"`
}

func (in *TaskInput) Validate(create bool) error {
	if missing(create, in.Title) {
		return perrors.Invalid("title", "is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		return perrors.Invalid("status", "must be todo, in_progress or completed")
	}
	if in.Priority != nil && (*in.Priority < TaskPriorityUrgent || *in.Priority > TaskPriorityLowest) {
		return perrors.Invalid("priority", "must be between 1 and 4")
	}
	return nil
}

// BlockerInput is the body of POST /blockers and PATCH /blockers/{id}.
type BlockerInput struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	ProjectID   *string        `json:"projectId"`
	Severity    *Severity      `json:"severity"`
	Status      *BlockerStatus `json:"status"`
	AssignedTo  *string        `json:"assignedTo"`
}

func (in *BlockerInput) Validate(create bool) error {
	if missing(create, in.Title) {
		return perrors.Invalid("title", "is required")
	}
	if in.Severity != nil && !in.Severity.Valid() {
		return perrors.Invalid("severity", "must be blocking, warning or info")
	}
	if in.Status != nil && !in.Status.Valid() {
		return perrors.Invalid("status", "must be open, in_progress or resolved")
	}
	return nil
}

// ResearchInput is the body of POST /research and PATCH /research/{id}.
type ResearchInput struct {
	Title    *string         `json:"title"`
	Topic    *string         `json:"topic"`
	Status   *ResearchStatus `json:"status"`
	Priority *Level          `json:"priority"`
	Notes    *string         `json:"notes"`
	URL      *string         `json:"url"`
	Tags     []string        `json:"tags"`
}

func (in *ResearchInput) Validate(create bool) error {
	if missing(create, in.Title) {
		return perrors.Invalid("title", "is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		return perrors.Invalid("status", "is not a valid research status")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return perrors.Invalid("priority", "must be high, medium or low")
	}
	return nil
}

// BotInput is the body of POST /bots. A supplied id that already exists
// updates that bot.
type BotInput struct {
	ID          string         `json:"id"`
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Status      *BotStatus     `json:"status"`
	Schedule    *string        `json:"schedule"`
	NextRun     *string        `json:"nextRun"`
	Config      map[string]any `json:"config"`
}

func (in *BotInput) Validate(create bool) error {
	if missing(create, in.Name) {
		return perrors.Invalid("name", "is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		return perrors.Invalid("status", "must be active, paused or error")
	}
	return nil
}

// BotLogInput is the body of POST /bots/{id}/logs.
type BotLogInput struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

func (in *BotLogInput) Validate() error {
	if strings.TrimSpace(in.Message) == "" {
		return perrors.Invalid("message", "is required")
	}
	if in.Level != "" && !in.Level.Valid() {
		return perrors.Invalid("level", "must be info, warning or error")
	}
	return nil
}

// OrchestrationTaskInput is the body of POST and PATCH /orchestration/tasks.
type OrchestrationTaskInput struct {
	ID               string               `json:"id"`
	Title            *string              `json:"title"`
	Objective        *string              `json:"objective"`
	DefinitionOfDone *string              `json:"definition_of_done"`
	OwnerBot         *string              `json:"owner_bot"`
	Priority         *string              `json:"priority"`
	Status           *OrchestrationStatus `json:"status"`
	DueAt            *string              `json:"due_at"`
	Constraints      []string             `json:"constraints"`
}

func (in *OrchestrationTaskInput) Validate(create bool) error {
	if missing(create, in.Title) {
		return perrors.Invalid("title", "is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		return perrors.Invalid("status", "must be queued, assigned, running, blocked or done")
	}
	if in.Priority != nil && !validOrchestrationPriority(*in.Priority) {
		return perrors.Invalid("priority", "must look like P0, P1, P2")
	}
	return nil
}

func validOrchestrationPriority(p string) bool {
	if len(p) < 2 || p[0] != 'P' {
		return false
	}
	for _, r := range p[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ReportInput is the body of POST /orchestration/reports.
type ReportInput struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	BotID     *string         `json:"bot_id"`
	TaskID    *string         `json:"task_id"`
	Payload   json.RawMessage `json:"payload"`
	Ts        *string         `json:"ts"`
}

func (in *ReportInput) Validate() error {
	if strings.TrimSpace(in.EventType) == "" {
		return perrors.Invalid("event_type", "is required")
	}
	if len(in.Payload) > 0 && string(in.Payload) != "null" && !json.Valid(in.Payload) {
		return perrors.Invalid("payload", "must be valid JSON")
	}
	if in.Ts != nil && *in.Ts != "" {
		if _, err := ParseTime(*in.Ts); err != nil {
			return perrors.Invalid("ts", "must be an RFC 3339 timestamp")
		}
	}
	return nil
}

// EscalationUpdate is the body of PATCH /orchestration/escalations/{id}.
type EscalationUpdate struct {
	Status         *EscalationStatus `json:"status"`
	Recommendation *string           `json:"recommendation"`
}

func (in *EscalationUpdate) Validate() error {
	if in.Status != nil && !in.Status.Valid() {
		return perrors.Invalid("status", "must be open or resolved")
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// missing reports a required text field that create omits or that either
// create or update sets to blank.
func missing(create bool, s *string) bool {
	if create {
		return blank(s)
	}
	return s != nil && blank(s)
}
