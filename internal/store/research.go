package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/p-blackswan/mission-control/internal/db"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

const researchColumns = `id, title, topic, status, priority, notes, url, tags, created_at, updated_at`

// ResearchFilter narrows ListResearch.
type ResearchFilter struct {
	Status   string
	Priority string
}

func scanResearch(row db.Scanner) (models.ResearchItem, error) {
	var (
		r                 models.ResearchItem
		topic, notes, url sql.NullString
		tags              string
	)
	err := row.Scan(&r.ID, &r.Title, &topic, &r.Status, &r.Priority, &notes, &url,
		&tags, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Topic = nullable(topic)
	r.Notes = nullable(notes)
	r.URL = nullable(url)
	r.Tags = decodeList(tags)
	return r, nil
}

// ListResearch returns research items, high priority first, newest first within a priority.
func (s *Store) ListResearch(ctx context.Context, f ResearchFilter) ([]models.ResearchItem, error) {
	var w where
	w.eq("status", f.Status)
	w.eq("priority", f.Priority)

	q := `SELECT ` + researchColumns + ` FROM research` + w.String() + ` ORDER BY ` + levelRank + `, created_at DESC`
	items, err := db.Collect(ctx, s.db.Prepare(q), scanResearch, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list research: %w", err)
	}
	return items, nil
}

// GetResearch returns one research item or ErrNotFound.
func (s *Store) GetResearch(ctx context.Context, id string) (*models.ResearchItem, error) {
	var r models.ResearchItem
	err := s.db.Prepare(`SELECT `+researchColumns+` FROM research WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		r, err = scanResearch(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get research item %s: %w", id, err)
	}
	return &r, nil
}

// CreateResearch inserts a research item; status defaults to queued and priority to medium.
func (s *Store) CreateResearch(ctx context.Context, in models.ResearchInput) (*models.ResearchItem, error) {
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	id, now := newID(), s.stamp()
	_, err := s.db.Prepare(`INSERT INTO research (`+researchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`).Run(ctx,
		id, *in.Title, text(in.Topic),
		orDefault(in.Status, models.ResearchQueued),
		orDefault(in.Priority, models.LevelMedium),
		text(in.Notes), text(in.URL), encodeList(in.Tags), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create research item: %w", err)
	}
	return s.GetResearch(ctx, id)
}

// UpdateResearch applies the supplied fields and refreshes updated_at.
func (s *Store) UpdateResearch(ctx context.Context, id string, in models.ResearchInput) (*models.ResearchItem, error) {
	if err := in.Validate(false); err != nil {
		return nil, err
	}
	n, err := s.db.Prepare(`UPDATE research SET
		title = COALESCE(?, title),
		topic = COALESCE(?, topic),
		status = COALESCE(?, status),
		priority = COALESCE(?, priority),
		notes = COALESCE(?, notes),
		url = COALESCE(?, url),
		tags = COALESCE(?, tags),
		updated_at = ?
		WHERE id = ?`).Run(ctx,
		text(in.Title), text(in.Topic), text(in.Status), text(in.Priority),
		text(in.Notes), text(in.URL), encodeListArg(in.Tags), s.stamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update research item %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("failed to update research item %s: %w", id, perrors.ErrNotFound)
	}
	return s.GetResearch(ctx, id)
}

// DeleteResearch removes a research item.
func (s *Store) DeleteResearch(ctx context.Context, id string) error {
	n, err := s.db.Prepare(`DELETE FROM research WHERE id = ?`).Run(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete research item %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete research item %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}
