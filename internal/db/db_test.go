package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), Options{Dialect: DialectSQLite, DataDir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"", DialectSQLite},
		{"sqlite3", DialectSQLite},
		{"SQLite", DialectSQLite},
		{"postgres", DialectPostgres},
		{"postgresql", DialectPostgres},
		{"pg", DialectPostgres},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT 1", Rebind("SELECT 1"))
	assert.Equal(t,
		"UPDATE tasks SET title = COALESCE($1, title) WHERE id = $2",
		Rebind("UPDATE tasks SET title = COALESCE(?, title) WHERE id = ?"))
	assert.Equal(t,
		"SELECT '?' AS q, id FROM t WHERE a = $1",
		Rebind("SELECT '?' AS q, id FROM t WHERE a = ?"))
}

func TestOpen_CreatesFileAndSchema(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	d, err := Open(context.Background(), Options{DataDir: dir}, zerolog.Nop())
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, DialectSQLite, d.Dialect())
	_, err = os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)

	tables := []string{
		"projects", "tasks", "blockers", "research", "bots", "bot_logs",
		"sync_metadata", "orchestration_tasks", "worker_reports", "escalations",
	}
	for _, table := range tables {
		var count int
		err := d.sql.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	v, err := d.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestMigrate_Idempotent(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.Migrate(ctx))
	require.NoError(t, d.Migrate(ctx))

	var rows int
	require.NoError(t, d.sql.QueryRow("SELECT COUNT(*) FROM sync_metadata").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestStmt_RunGetAll(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	insert := d.Prepare(`INSERT INTO bot_logs (id, bot_id, timestamp, level, message) VALUES (?, ?, ?, ?, ?)`)
	for i, msg := range []string{"first", "second", "third"} {
		n, err := insert.Run(ctx, msg, "bot-1", string(rune('a'+i)), "info", msg)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	var msg string
	err := d.Prepare(`SELECT message FROM bot_logs WHERE id = ?`).Get(ctx, func(row Scanner) error {
		return row.Scan(&msg)
	}, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", msg)

	err = d.Prepare(`SELECT message FROM bot_logs WHERE id = ?`).Get(ctx, func(row Scanner) error {
		return row.Scan(&msg)
	}, "missing")
	assert.ErrorIs(t, err, perrors.ErrNotFound)

	msgs, err := Collect(ctx, d.Prepare(`SELECT message FROM bot_logs ORDER BY timestamp DESC`),
		func(row Scanner) (string, error) {
			var m string
			err := row.Scan(&m)
			return m, err
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, msgs)

	n, err := d.Prepare(`DELETE FROM bot_logs WHERE bot_id = ?`).Run(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCollect_EmptyIsNotNil(t *testing.T) {
	d := newTestDB(t)
	out, err := Collect(context.Background(), d.Prepare(`SELECT id FROM projects`),
		func(row Scanner) (string, error) {
			var id string
			err := row.Scan(&id)
			return id, err
		})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestPing_AfterClose(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.Ping(context.Background()))
	require.NoError(t, d.Close())
	assert.Error(t, d.Ping(context.Background()))
}
