package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/p-blackswan/mission-control/internal/db"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

const projectColumns = `id, name, description, status, priority, progress, todoist_project_id, due_date, created_at, updated_at`

// ProjectFilter narrows ListProjects. Empty fields match everything.
type ProjectFilter struct {
	Status   string
	Priority string
}

func scanProject(row db.Scanner) (models.Project, error) {
	var (
		p                        models.Project
		desc, todoistID, dueDate sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &desc, &p.Status, &p.Priority, &p.Progress,
		&todoistID, &dueDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Description = nullable(desc)
	p.TodoistProjectID = nullable(todoistID)
	p.DueDate = nullable(dueDate)
	return p, nil
}

// ListProjects returns projects, most urgent first, newest first within a priority.
func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	var w where
	w.eq("status", f.Status)
	w.eq("priority", f.Priority)

	q := `SELECT ` + projectColumns + ` FROM projects` + w.String() + ` ORDER BY ` + levelRank + `, created_at DESC`
	projects, err := db.Collect(ctx, s.db.Prepare(q), scanProject, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// GetProject returns one project or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.db.Prepare(`SELECT `+projectColumns+` FROM projects WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		p, err = scanProject(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return &p, nil
}

// CreateProject inserts a project, filling defaults for unset fields.
func (s *Store) CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error) {
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	id, now := newID(), s.stamp()
	progress := 0
	if in.Progress != nil {
		progress = *in.Progress
	}

	_, err := s.db.Prepare(`INSERT INTO projects (` + projectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`).Run(ctx,
		id, *in.Name, text(in.Description),
		orDefault(in.Status, models.ProjectActive),
		orDefault(in.Priority, models.LevelMedium),
		progress, text(in.TodoistProjectID), text(in.DueDate), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// UpdateProject applies the supplied fields and refreshes updated_at.
func (s *Store) UpdateProject(ctx context.Context, id string, in models.ProjectInput) (*models.Project, error) {
	if err := in.Validate(false); err != nil {
		return nil, err
	}
	n, err := s.db.Prepare(`UPDATE projects SET
		name = COALESCE(?, name),
		description = COALESCE(?, description),
		status = COALESCE(?, status),
		priority = COALESCE(?, priority),
		progress = COALESCE(?, progress),
		todoist_project_id = COALESCE(?, todoist_project_id),
		due_date = COALESCE(?, due_date),
		updated_at = ?
		WHERE id = ?`).Run(ctx,
		text(in.Name), text(in.Description), text(in.Status), text(in.Priority),
		integer(in.Progress), text(in.TodoistProjectID), text(in.DueDate),
		s.stamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update project %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("failed to update project %s: %w", id, perrors.ErrNotFound)
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project. Tasks and blockers referencing it are kept.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	n, err := s.db.Prepare(`DELETE FROM projects WHERE id = ?`).Run(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete project %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}

// UpsertTodoistProject mirrors a Todoist project keyed by its external id.
func (s *Store) UpsertTodoistProject(ctx context.Context, todoistID, name string) error {
	now := s.stamp()
	_, err := s.db.Prepare(`INSERT INTO projects (id, name, status, priority, progress, todoist_project_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (todoist_project_id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`).Run(ctx,
		newID(), name, string(models.ProjectActive), string(models.LevelMedium), todoistID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert todoist project %s: %w", todoistID, err)
	}
	return nil
}

// CountProjects returns the number of stored projects.
func (s *Store) CountProjects(ctx context.Context) (int, error) {
	return s.count(ctx, "projects")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.db.Prepare(`SELECT COUNT(*) FROM `+table).Get(ctx, func(row db.Scanner) error {
		return row.Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
