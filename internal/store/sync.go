package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/p-blackswan/mission-control/internal/db"
	"github.com/p-blackswan/mission-control/internal/models"
)

// SyncMetadata returns the last successful sync times.
func (s *Store) SyncMetadata(ctx context.Context) (*models.SyncMetadata, error) {
	var todoist, calendar sql.NullString
	err := s.db.Prepare(`SELECT last_todoist_sync, last_calendar_sync FROM sync_metadata WHERE id = 1`).
		Get(ctx, func(row db.Scanner) error {
			return row.Scan(&todoist, &calendar)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to read sync metadata: %w", err)
	}
	return &models.SyncMetadata{
		LastTodoistSync:  nullable(todoist),
		LastCalendarSync: nullable(calendar),
	}, nil
}

// MarkTodoistSync records a successful Todoist sync and returns its timestamp.
func (s *Store) MarkTodoistSync(ctx context.Context) (string, error) {
	return s.markSync(ctx, "last_todoist_sync")
}

// MarkCalendarSync records a successful calendar fetch and returns its timestamp.
func (s *Store) MarkCalendarSync(ctx context.Context) (string, error) {
	return s.markSync(ctx, "last_calendar_sync")
}

func (s *Store) markSync(ctx context.Context, column string) (string, error) {
	now := s.stamp()
	if _, err := s.db.Prepare(`UPDATE sync_metadata SET `+column+` = ? WHERE id = 1`).Run(ctx, now); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", column, err)
	}
	return now, nil
}
