package db

import (
	"context"
	"fmt"
	"time"
)

// migration is one schema version. Statements run one at a time so the same
// DDL works on engines that reject multi-statement Exec.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{version: 1, statements: []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			priority TEXT NOT NULL DEFAULT 'medium',
			progress INTEGER NOT NULL DEFAULT 0,
			todoist_project_id TEXT UNIQUE,
			due_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'todo',
			priority INTEGER NOT NULL DEFAULT 4,
			project_id TEXT,
			todoist_task_id TEXT UNIQUE,
			due_date TEXT,
			labels TEXT NOT NULL DEFAULT '[]',
			url TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE TABLE IF NOT EXISTS blockers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			project_id TEXT,
			severity TEXT NOT NULL DEFAULT 'warning',
			status TEXT NOT NULL DEFAULT 'open',
			assigned_to TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS research (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			topic TEXT,
			status TEXT NOT NULL DEFAULT 'queued',
			priority TEXT NOT NULL DEFAULT 'medium',
			notes TEXT,
			url TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bots (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'paused',
			last_run TEXT,
			next_run TEXT,
			schedule TEXT,
			config TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bot_logs (
			id TEXT PRIMARY KEY,
			bot_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL DEFAULT 'info',
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bot_logs_bot ON bot_logs(bot_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS sync_metadata (
			id INTEGER PRIMARY KEY,
			last_todoist_sync TEXT,
			last_calendar_sync TEXT
		)`,
		`INSERT INTO sync_metadata (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	}},
	{version: 2, statements: []string{
		`CREATE TABLE IF NOT EXISTS orchestration_tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			objective TEXT,
			definition_of_done TEXT,
			owner_bot TEXT,
			priority TEXT NOT NULL DEFAULT 'P2',
			status TEXT NOT NULL DEFAULT 'queued',
			due_at TEXT,
			constraints_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS worker_reports (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			bot_id TEXT,
			task_id TEXT,
			payload_json TEXT NOT NULL DEFAULT '{}',
			ts TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_worker_reports_type ON worker_reports(event_type, ts)`,
		`CREATE TABLE IF NOT EXISTS escalations (
			id TEXT PRIMARY KEY,
			task_id TEXT,
			bot_id TEXT,
			reason TEXT NOT NULL,
			options_json TEXT NOT NULL DEFAULT '[]',
			recommendation TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escalations_status ON escalations(status)`,
	}},
}

// Migrate creates any missing tables and records applied schema versions.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	err := d.Prepare(`SELECT version FROM schema_migrations`).All(ctx, func(row Scanner) error {
		var v int
		if err := row.Scan(&v); err != nil {
			return err
		}
		applied[v] = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
			}
		}
		_, err := d.Prepare(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`).
			Run(ctx, m.version, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		d.logger.Debug().Int("version", m.version).Msg("applied schema migration")
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := d.Prepare(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Get(ctx, func(row Scanner) error {
		return row.Scan(&v)
	})
	return v, err
}
