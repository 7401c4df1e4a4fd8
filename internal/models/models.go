// Package models defines the records persisted by the store and the request
// bodies accepted for them. Optional columns are pointers so that JSON output
// shows null for absent values.
package models

import "time"

// TimeLayout is the fixed-width UTC format every timestamp column uses.
// Lexical order of formatted values equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an RFC 3339 timestamp with any offset or precision.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// NormalizeTime re-renders an RFC 3339 timestamp in TimeLayout.
func NormalizeTime(s string) (string, error) {
	t, err := ParseTime(s)
	if err != nil {
		return "", err
	}
	return FormatTime(t), nil
}

// Level is the coarse priority used by projects and research items.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

func (l Level) Valid() bool {
	switch l {
	case LevelHigh, LevelMedium, LevelLow:
		return true
	}
	return false
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectPaused, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

// Project groups tasks, blockers and research.
type Project struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      *string       `json:"description"`
	Status           ProjectStatus `json:"status"`
	Priority         Level         `json:"priority"`
	Progress         int           `json:"progress"`
	TodoistProjectID *string       `json:"todoist_project_id"`
	DueDate          *string       `json:"due_date"`
	CreatedAt        string        `json:"created_at"`
	UpdatedAt        string        `json:"updated_at"`
}

// TaskStatus is the state of a tracked task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Task priorities run from 1 (most urgent) to 4.
const (
	TaskPriorityUrgent = 1
	TaskPriorityLowest = 4
)

// Task is a unit of work, optionally mirrored from Todoist.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	Status        TaskStatus `json:"status"`
	Priority      int        `json:"priority"`
	ProjectID     *string    `json:"project_id"`
	TodoistTaskID *string    `json:"todoist_task_id"`
	DueDate       *string    `json:"due_date"`
	Labels        []string   `json:"labels"`
	URL           *string    `json:"url"`
	CreatedAt     string     `json:"created_at"`
	UpdatedAt     string     `json:"updated_at"`
}

// Severity ranks how much a blocker stalls work.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityBlocking, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// BlockerStatus is the state of a blocker.
type BlockerStatus string

const (
	BlockerOpen       BlockerStatus = "open"
	BlockerInProgress BlockerStatus = "in_progress"
	BlockerResolved   BlockerStatus = "resolved"
)

func (s BlockerStatus) Valid() bool {
	switch s {
	case BlockerOpen, BlockerInProgress, BlockerResolved:
		return true
	}
	return false
}

// Blocker is an impediment that needs a person's attention.
type Blocker struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	ProjectID   *string       `json:"project_id"`
	Severity    Severity      `json:"severity"`
	Status      BlockerStatus `json:"status"`
	AssignedTo  *string       `json:"assigned_to"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

// ResearchStatus is the state of a research item.
type ResearchStatus string

const (
	ResearchQueued     ResearchStatus = "queued"
	ResearchInProgress ResearchStatus = "in_progress"
	ResearchCompleted  ResearchStatus = "completed"
	ResearchArchived   ResearchStatus = "archived"
)

func (s ResearchStatus) Valid() bool {
	switch s {
	case ResearchQueued, ResearchInProgress, ResearchCompleted, ResearchArchived:
		return true
	}
	return false
}

// ResearchItem is a topic queued for reading or investigation.
type ResearchItem struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Topic     *string        `json:"topic"`
	Status    ResearchStatus `json:"status"`
	Priority  Level          `json:"priority"`
	Notes     *string        `json:"notes"`
	URL       *string        `json:"url"`
	Tags      []string       `json:"tags"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// BotStatus is the reported state of an automation bot.
type BotStatus string

const (
	BotActive BotStatus = "active"
	BotPaused BotStatus = "paused"
	BotError  BotStatus = "error"
)

func (s BotStatus) Valid() bool {
	switch s {
	case BotActive, BotPaused, BotError:
		return true
	}
	return false
}

// Bot is an external automation agent. Schedule is descriptive only.
type Bot struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Status      BotStatus      `json:"status"`
	LastRun     *string        `json:"last_run"`
	NextRun     *string        `json:"next_run"`
	Schedule    *string        `json:"schedule"`
	Config      map[string]any `json:"config"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	Logs        []BotLog       `json:"logs"`
}

// LogLevel is the severity of a bot log line.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

func (l LogLevel) Valid() bool {
	switch l {
	case LogInfo, LogWarning, LogError:
		return true
	}
	return false
}

// BotLog is an append-only log line reported by a bot.
type BotLog struct {
	ID        string   `json:"id"`
	BotID     string   `json:"bot_id"`
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
}

// SyncMetadata records when each integration last synced.
type SyncMetadata struct {
	LastTodoistSync  *string `json:"lastTodoistSync"`
	LastCalendarSync *string `json:"lastCalendarSync"`
}
