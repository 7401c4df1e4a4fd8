package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/p-blackswan/mission-control/internal/db"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

const taskColumns = `id, title, description, status, priority, project_id, todoist_task_id, due_date, labels, url, created_at, updated_at`

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status    string
	ProjectID string
}

// ExternalTask is a task as reported by Todoist, keyed by its Todoist id.
type ExternalTask struct {
	TodoistID        string
	TodoistProjectID string
	Title            string
	Description      *string
	Completed        bool
	Priority         int
	DueDate          *string
	Labels           []string
	URL              *string
}

func (t ExternalTask) status() models.TaskStatus {
	if t.Completed {
		return models.TaskCompleted
	}
	return models.TaskTodo
}

func scanTask(row db.Scanner) (models.Task, error) {
	var (
		t                                            models.Task
		desc, projectID, todoistID, dueDate, taskURL sql.NullString
		labels                                       string
	)
	err := row.Scan(&t.ID, &t.Title, &desc, &t.Status, &t.Priority, &projectID,
		&todoistID, &dueDate, &labels, &taskURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.Description = nullable(desc)
	t.ProjectID = nullable(projectID)
	t.TodoistTaskID = nullable(todoistID)
	t.DueDate = nullable(dueDate)
	t.URL = nullable(taskURL)
	t.Labels = decodeList(labels)
	return t, nil
}

// ListTasks returns tasks ordered by priority (1 first), then newest first.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	var w where
	w.eq("status", f.Status)
	w.eq("project_id", f.ProjectID)

	q := `SELECT ` + taskColumns + ` FROM tasks` + w.String() + ` ORDER BY priority ASC, created_at DESC`
	tasks, err := db.Collect(ctx, s.db.Prepare(q), scanTask, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns one task or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	err := s.db.Prepare(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		t, err = scanTask(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return &t, nil
}

// CreateTask inserts a task. Status defaults to todo and priority to 4.
func (s *Store) CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	id, now := newID(), s.stamp()
	priority := models.TaskPriorityLowest
	if in.Priority != nil {
		priority = *in.Priority
	}

	_, err := s.db.Prepare(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`).Run(ctx,
		id, *in.Title, text(in.Description), orDefault(in.Status, models.TaskTodo), priority,
		text(in.ProjectID), text(in.TodoistTaskID), text(in.DueDate), encodeList(in.Labels),
		text(in.URL), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// UpdateTask applies the supplied fields and refreshes updated_at.
func (s *Store) UpdateTask(ctx context.Context, id string, in models.TaskInput) (*models.Task, error) {
	if err := in.Validate(false); err != nil {
		return nil, err
	}
	n, err := s.db.Prepare(`UPDATE tasks SET
		title = COALESCE(?, title),
		description = COALESCE(?, description),
		status = COALESCE(?, status),
		priority = COALESCE(?, priority),
		project_id = COALESCE(?, project_id),
		due_date = COALESCE(?, due_date),
		labels = COALESCE(?, labels),
		url = COALESCE(?, url),
		updated_at = ?
		WHERE id = ?`).Run(ctx,
		text(in.Title), text(in.Description), text(in.Status), integer(in.Priority),
		text(in.ProjectID), text(in.DueDate), encodeListArg(in.Labels), text(in.URL),
		s.stamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("failed to update task %s: %w", id, perrors.ErrNotFound)
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task by local id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	n, err := s.db.Prepare(`DELETE FROM tasks WHERE id = ?`).Run(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete task %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}

const upsertTodoistTask = `INSERT INTO tasks (id, title, description, status, priority, project_id, todoist_task_id, due_date, labels, url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, (SELECT id FROM projects WHERE todoist_project_id = ?), ?, ?, ?, ?, ?, ?)
	ON CONFLICT (todoist_task_id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		%s
		priority = excluded.priority,
		project_id = COALESCE(excluded.project_id, tasks.project_id),
		due_date = excluded.due_date,
		labels = excluded.labels,
		url = excluded.url,
		updated_at = excluded.updated_at`

// UpsertTodoistTask mirrors a Todoist task, overwriting the local status.
// Used by full syncs, where Todoist is authoritative.
func (s *Store) UpsertTodoistTask(ctx context.Context, t ExternalTask) error {
	return s.upsertExternal(ctx, fmt.Sprintf(upsertTodoistTask, "status = excluded.status,"), t)
}

// ApplyTodoistUpdate mirrors an added or edited Todoist task. An existing row
// keeps its status; completion arrives as its own event.
func (s *Store) ApplyTodoistUpdate(ctx context.Context, t ExternalTask) error {
	return s.upsertExternal(ctx, fmt.Sprintf(upsertTodoistTask, ""), t)
}

func (s *Store) upsertExternal(ctx context.Context, query string, t ExternalTask) error {
	if t.TodoistID == "" {
		return perrors.Invalid("todoist_task_id", "is required")
	}
	title := t.Title
	if title == "" {
		title = "Untitled"
	}
	priority := t.Priority
	if priority < models.TaskPriorityUrgent || priority > models.TaskPriorityLowest {
		priority = models.TaskPriorityLowest
	}
	now := s.stamp()
	_, err := s.db.Prepare(query).Run(ctx,
		newID(), title, text(t.Description), string(t.status()), priority, t.TodoistProjectID,
		t.TodoistID, text(t.DueDate), encodeList(t.Labels), text(t.URL), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert todoist task %s: %w", t.TodoistID, err)
	}
	return nil
}

// SetTodoistTaskStatus changes the status of the task mirrored from todoistID.
// It reports whether a row matched.
func (s *Store) SetTodoistTaskStatus(ctx context.Context, todoistID string, status models.TaskStatus) (bool, error) {
	n, err := s.db.Prepare(`UPDATE tasks SET status = ?, updated_at = ? WHERE todoist_task_id = ?`).
		Run(ctx, string(status), s.stamp(), todoistID)
	if err != nil {
		return false, fmt.Errorf("failed to set status of todoist task %s: %w", todoistID, err)
	}
	return n > 0, nil
}

// DeleteTodoistTask removes the task mirrored from todoistID. Missing rows are not an error.
func (s *Store) DeleteTodoistTask(ctx context.Context, todoistID string) (bool, error) {
	n, err := s.db.Prepare(`DELETE FROM tasks WHERE todoist_task_id = ?`).Run(ctx, todoistID)
	if err != nil {
		return false, fmt.Errorf("failed to delete todoist task %s: %w", todoistID, err)
	}
	return n > 0, nil
}

// CountTasks returns the number of stored tasks.
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	return s.count(ctx, "tasks")
}
