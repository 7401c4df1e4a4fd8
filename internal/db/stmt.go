package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	perrors "github.com/p-blackswan/mission-control/internal/errors"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Stmt is a query bound to a database. Parameters are positional "?"
// placeholders; values are always passed as arguments, never spliced in.
type Stmt struct {
	db    *DB
	query string
}

// Prepare binds a query to the adapter, translating placeholders for the
// active dialect. Nothing is sent to the engine until the statement runs.
func (d *DB) Prepare(query string) *Stmt {
	if d.dialect == DialectPostgres {
		query = Rebind(query)
	}
	return &Stmt{db: d, query: query}
}

// Run executes a mutation and returns the number of affected rows.
func (s *Stmt) Run(ctx context.Context, args ...any) (int64, error) {
	res, err := s.db.sql.ExecContext(ctx, s.query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Get scans at most one row. It returns ErrNotFound when the query matches nothing.
func (s *Stmt) Get(ctx context.Context, scan func(Scanner) error, args ...any) error {
	err := scan(s.db.sql.QueryRowContext(ctx, s.query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return perrors.ErrNotFound
	}
	return err
}

// All calls scan once per row, in the order the engine returns them.
func (s *Stmt) All(ctx context.Context, scan func(Scanner) error, args ...any) error {
	rows, err := s.db.sql.QueryContext(ctx, s.query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Collect runs stmt and gathers every row through scan.
func Collect[T any](ctx context.Context, stmt *Stmt, scan func(Scanner) (T, error), args ...any) ([]T, error) {
	out := []T{}
	err := stmt.All(ctx, func(row Scanner) error {
		v, err := scan(row)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	}, args...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rebind rewrites "?" placeholders to "$1", "$2", ... skipping quoted text.
func Rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var (
		b     strings.Builder
		n     int
		quote rune
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
