package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/p-blackswan/mission-control/internal/db"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

const blockerColumns = `id, title, description, project_id, severity, status, assigned_to, created_at, updated_at`

// BlockerFilter narrows ListBlockers.
type BlockerFilter struct {
	Status   string
	Severity string
}

func scanBlocker(row db.Scanner) (models.Blocker, error) {
	var (
		b                           models.Blocker
		desc, projectID, assignedTo sql.NullString
	)
	err := row.Scan(&b.ID, &b.Title, &desc, &projectID, &b.Severity, &b.Status,
		&assignedTo, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	b.Description = nullable(desc)
	b.ProjectID = nullable(projectID)
	b.AssignedTo = nullable(assignedTo)
	return b, nil
}

// ListBlockers returns blockers with blocking severity first, then warning,
// then everything else; newest first within a severity.
func (s *Store) ListBlockers(ctx context.Context, f BlockerFilter) ([]models.Blocker, error) {
	var w where
	w.eq("status", f.Status)
	w.eq("severity", f.Severity)

	q := `SELECT ` + blockerColumns + ` FROM blockers` + w.String() +
		` ORDER BY CASE severity WHEN 'blocking' THEN 1 WHEN 'warning' THEN 2 ELSE 3 END, created_at DESC`
	blockers, err := db.Collect(ctx, s.db.Prepare(q), scanBlocker, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blockers: %w", err)
	}
	return blockers, nil
}

// GetBlocker returns one blocker or ErrNotFound.
func (s *Store) GetBlocker(ctx context.Context, id string) (*models.Blocker, error) {
	var b models.Blocker
	err := s.db.Prepare(`SELECT `+blockerColumns+` FROM blockers WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		b, err = scanBlocker(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocker %s: %w", id, err)
	}
	return &b, nil
}

// CreateBlocker inserts a blocker with severity warning and status open unless given.
func (s *Store) CreateBlocker(ctx context.Context, in models.BlockerInput) (*models.Blocker, error) {
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	id, now := newID(), s.stamp()
	_, err := s.db.Prepare(`INSERT INTO blockers (`+blockerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`).Run(ctx,
		id, *in.Title, text(in.Description), text(in.ProjectID),
		orDefault(in.Severity, models.SeverityWarning),
		orDefault(in.Status, models.BlockerOpen),
		text(in.AssignedTo), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blocker: %w", err)
	}
	return s.GetBlocker(ctx, id)
}

// UpdateBlocker applies the supplied fields and refreshes updated_at.
func (s *Store) UpdateBlocker(ctx context.Context, id string, in models.BlockerInput) (*models.Blocker, error) {
	if err := in.Validate(false); err != nil {
		return nil, err
	}
	n, err := s.db.Prepare(`UPDATE blockers SET
		title = COALESCE(?, title),
		description = COALESCE(?, description),
		project_id = COALESCE(?, project_id),
		severity = COALESCE(?, severity),
		status = COALESCE(?, status),
		assigned_to = COALESCE(?, assigned_to),
		updated_at = ?
		WHERE id = ?`).Run(ctx,
		text(in.Title), text(in.Description), text(in.ProjectID), text(in.Severity),
		text(in.Status), text(in.AssignedTo), s.stamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update blocker %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("failed to update blocker %s: %w", id, perrors.ErrNotFound)
	}
	return s.GetBlocker(ctx, id)
}

// DeleteBlocker removes a blocker.
func (s *Store) DeleteBlocker(ctx context.Context, id string) error {
	n, err := s.db.Prepare(`DELETE FROM blockers WHERE id = ?`).Run(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocker %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete blocker %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}
