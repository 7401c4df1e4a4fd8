package todoist

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/metrics"
	"github.com/p-blackswan/mission-control/internal/models"
	"github.com/p-blackswan/mission-control/internal/store"
)

// Mirror is the part of the store the sync writes to.
type Mirror interface {
	UpsertTodoistProject(ctx context.Context, todoistID, name string) error
	UpsertTodoistTask(ctx context.Context, t store.ExternalTask) error
	ApplyTodoistUpdate(ctx context.Context, t store.ExternalTask) error
	SetTodoistTaskStatus(ctx context.Context, todoistID string, status models.TaskStatus) (bool, error)
	DeleteTodoistTask(ctx context.Context, todoistID string) (bool, error)
	MarkTodoistSync(ctx context.Context) (string, error)
}

// Source is the part of the Todoist API the sync reads from.
type Source interface {
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, error)
	ListProjects(ctx context.Context) ([]Project, error)
}

// Result summarises a sync run.
type Result struct {
	Projects int    `json:"projects"`
	Tasks    int    `json:"tasks"`
	SyncedAt string `json:"syncedAt"`
}

// Syncer mirrors Todoist projects and tasks into the store.
type Syncer struct {
	source  Source
	mirror  Mirror
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewSyncer creates a Syncer. source is nil when no API token is configured;
// m may be nil.
func NewSyncer(source Source, mirror Mirror, m *metrics.Metrics, logger zerolog.Logger) *Syncer {
	return &Syncer{
		source:  source,
		mirror:  mirror,
		metrics: m,
		logger:  logger.With().Str("component", "todoist_sync").Logger(),
	}
}

// ToExternal converts an API task into the store's external task shape.
func ToExternal(t Task) store.ExternalTask {
	ext := store.ExternalTask{
		TodoistID:        t.ID,
		TodoistProjectID: t.ProjectID,
		Title:            t.Content,
		Completed:        t.Completed(),
		Priority:         MapPriority(t.Priority),
		Labels:           t.Labels,
	}
	if t.Description != "" {
		d := t.Description
		ext.Description = &d
	}
	if due := t.DueDate(); due != "" {
		ext.DueDate = &due
	}
	link := t.Link()
	ext.URL = &link
	return ext
}

// Sync pulls every project and active task and records the sync time. Project
// failures are logged; tasks are what the dashboard depends on.
func (s *Syncer) Sync(ctx context.Context, trigger string) (*Result, error) {
	res, err := s.sync(ctx)
	if err != nil {
		s.metrics.RecordSync(trigger, "error")
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("todoist sync failed")
		return nil, err
	}
	s.metrics.RecordSync(trigger, "ok")
	s.logger.Info().
		Str("trigger", trigger).
		Int("projects", res.Projects).
		Int("tasks", res.Tasks).
		Msg("todoist sync complete")
	return res, nil
}

// Configured reports whether the Syncer can reach the Todoist API. Webhook
// handling works without it.
func (s *Syncer) Configured() bool {
	return s.source != nil
}

// PullTasks fetches active tasks, upserts them and records the sync time.
func (s *Syncer) PullTasks(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, fmt.Errorf("todoist: %w", perrors.ErrNotConfigured)
	}
	tasks, err := s.source.ListTasks(ctx, TaskFilter{})
	if err != nil {
		s.metrics.RecordSync("fetch", "error")
		return 0, err
	}
	if err := s.Apply(ctx, tasks); err != nil {
		s.metrics.RecordSync("fetch", "error")
		return 0, err
	}
	if _, err := s.mirror.MarkTodoistSync(ctx); err != nil {
		return 0, fmt.Errorf("recording sync time: %w", err)
	}
	s.metrics.RecordSync("fetch", "ok")
	return len(tasks), nil
}

func (s *Syncer) sync(ctx context.Context) (*Result, error) {
	if s.source == nil {
		return nil, fmt.Errorf("todoist: %w", perrors.ErrNotConfigured)
	}
	res := &Result{}

	projects, err := s.source.ListProjects(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("skipping todoist projects")
	}
	for _, p := range projects {
		if err := s.mirror.UpsertTodoistProject(ctx, p.ID, p.Name); err != nil {
			return nil, err
		}
		res.Projects++
	}

	tasks, err := s.source.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return nil, err
	}
	if err := s.Apply(ctx, tasks); err != nil {
		return nil, err
	}
	res.Tasks = len(tasks)

	res.SyncedAt, err = s.mirror.MarkTodoistSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("recording sync time: %w", err)
	}
	return res, nil
}

// Apply upserts fetched tasks, Todoist status winning over local edits.
func (s *Syncer) Apply(ctx context.Context, tasks []Task) error {
	for _, t := range tasks {
		if err := s.mirror.UpsertTodoistTask(ctx, ToExternal(t)); err != nil {
			return err
		}
	}
	return nil
}
