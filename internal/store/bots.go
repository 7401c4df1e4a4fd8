package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/p-blackswan/mission-control/internal/db"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

const (
	botColumns    = `id, name, description, status, last_run, next_run, schedule, config, created_at, updated_at`
	botLogColumns = `id, bot_id, timestamp, level, message`

	// DefaultBotLogLimit is the page size of GET /bots/{id}/logs.
	DefaultBotLogLimit = 50
)

func scanBot(row db.Scanner) (models.Bot, error) {
	var (
		b                                models.Bot
		desc, lastRun, nextRun, schedule sql.NullString
		config                           string
	)
	err := row.Scan(&b.ID, &b.Name, &desc, &b.Status, &lastRun, &nextRun, &schedule,
		&config, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	b.Description = nullable(desc)
	b.LastRun = nullable(lastRun)
	b.NextRun = nullable(nextRun)
	b.Schedule = nullable(schedule)
	b.Config = decodeMap(config)
	b.Logs = []models.BotLog{}
	return b, nil
}

func scanBotLog(row db.Scanner) (models.BotLog, error) {
	var l models.BotLog
	err := row.Scan(&l.ID, &l.BotID, &l.Timestamp, &l.Level, &l.Message)
	return l, err
}

// ListBots returns every bot by name, each with its logLimit most recent logs.
// logLimit <= 0 skips the logs.
func (s *Store) ListBots(ctx context.Context, logLimit int) ([]models.Bot, error) {
	bots, err := db.Collect(ctx, s.db.Prepare(`SELECT `+botColumns+` FROM bots ORDER BY name ASC`), scanBot)
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}
	if logLimit <= 0 {
		return bots, nil
	}
	for i := range bots {
		logs, err := s.ListBotLogs(ctx, bots[i].ID, logLimit)
		if err != nil {
			return nil, err
		}
		bots[i].Logs = logs
	}
	return bots, nil
}

// GetBot returns one bot with its logLimit most recent logs.
func (s *Store) GetBot(ctx context.Context, id string, logLimit int) (*models.Bot, error) {
	var b models.Bot
	err := s.db.Prepare(`SELECT `+botColumns+` FROM bots WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		b, err = scanBot(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot %s: %w", id, err)
	}
	if logLimit > 0 {
		logs, err := s.ListBotLogs(ctx, id, logLimit)
		if err != nil {
			return nil, err
		}
		b.Logs = logs
	}
	return &b, nil
}

// UpsertBot updates the bot with in.ID when it exists, otherwise inserts a new
// bot (keeping a supplied id). It reports whether a row was created.
func (s *Store) UpsertBot(ctx context.Context, in models.BotInput) (*models.Bot, bool, error) {
	if in.ID != "" {
		_, err := s.GetBot(ctx, in.ID, 0)
		switch {
		case err == nil:
			b, err := s.updateBot(ctx, in)
			return b, false, err
		case !errors.Is(err, perrors.ErrNotFound):
			return nil, false, err
		}
	}

	if err := in.Validate(true); err != nil {
		return nil, false, err
	}
	id := in.ID
	if id == "" {
		id = newID()
	}
	now := s.stamp()
	_, err := s.db.Prepare(`INSERT INTO bots (`+botColumns+`) VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`).Run(ctx,
		id, *in.Name, text(in.Description), orDefault(in.Status, models.BotPaused),
		text(in.NextRun), text(in.Schedule), encodeMap(in.Config), now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create bot: %w", err)
	}
	b, err := s.GetBot(ctx, id, 0)
	return b, true, err
}

func (s *Store) updateBot(ctx context.Context, in models.BotInput) (*models.Bot, error) {
	if err := in.Validate(false); err != nil {
		return nil, err
	}
	var config any
	if in.Config != nil {
		config = encodeMap(in.Config)
	}
	_, err := s.db.Prepare(`UPDATE bots SET
		name = COALESCE(?, name),
		description = COALESCE(?, description),
		status = COALESCE(?, status),
		schedule = COALESCE(?, schedule),
		next_run = COALESCE(?, next_run),
		config = COALESCE(?, config),
		updated_at = ?
		WHERE id = ?`).Run(ctx,
		text(in.Name), text(in.Description), text(in.Status), text(in.Schedule),
		text(in.NextRun), config, s.stamp(), in.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update bot %s: %w", in.ID, err)
	}
	return s.GetBot(ctx, in.ID, 0)
}

// DeleteBot removes a bot. Its logs are kept.
func (s *Store) DeleteBot(ctx context.Context, id string) error {
	n, err := s.db.Prepare(`DELETE FROM bots WHERE id = ?`).Run(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete bot %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete bot %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}

// ListBotLogs returns up to limit logs for botID, newest first.
func (s *Store) ListBotLogs(ctx context.Context, botID string, limit int) ([]models.BotLog, error) {
	if limit <= 0 {
		limit = DefaultBotLogLimit
	}
	logs, err := db.Collect(ctx,
		s.db.Prepare(`SELECT `+botLogColumns+` FROM bot_logs WHERE bot_id = ? ORDER BY timestamp DESC LIMIT ?`),
		scanBotLog, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs for bot %s: %w", botID, err)
	}
	return logs, nil
}

// AddBotLog appends a log line and marks the bot as having just run.
func (s *Store) AddBotLog(ctx context.Context, botID string, in models.BotLogInput) (*models.BotLog, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	level := in.Level
	if level == "" {
		level = models.LogInfo
	}
	entry := models.BotLog{
		ID:        newID(),
		BotID:     botID,
		Timestamp: s.stamp(),
		Level:     level,
		Message:   in.Message,
	}
	_, err := s.db.Prepare(`INSERT INTO bot_logs (`+botLogColumns+`) VALUES (?, ?, ?, ?, ?)`).Run(ctx,
		entry.ID, entry.BotID, entry.Timestamp, string(entry.Level), entry.Message,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add log for bot %s: %w", botID, err)
	}
	if _, err := s.db.Prepare(`UPDATE bots SET last_run = ?, updated_at = ? WHERE id = ?`).
		Run(ctx, entry.Timestamp, s.stamp(), botID); err != nil {
		return nil, fmt.Errorf("failed to record last run for bot %s: %w", botID, err)
	}
	return &entry, nil
}

// CountBots returns the number of registered bots.
func (s *Store) CountBots(ctx context.Context) (int, error) {
	return s.count(ctx, "bots")
}
