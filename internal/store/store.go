// Package store holds the repositories for every persisted entity. It is the
// only place JSON-in-text columns are encoded or decoded.
package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/mission-control/internal/db"
	"github.com/p-blackswan/mission-control/internal/models"
)

// Store runs typed queries against the persistence adapter.
type Store struct {
	db     *db.DB
	logger zerolog.Logger

	clockMu sync.Mutex
	clock   func() time.Time
	last    time.Time
}

// New wraps an open database.
func New(database *db.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     database,
		logger: logger.With().Str("component", "store").Logger(),
		clock:  time.Now,
	}
}

// SetClock replaces the time source (for testing).
func (s *Store) SetClock(clock func() time.Time) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.clock = clock
	s.last = time.Time{}
}

// DB returns the persistence adapter.
func (s *Store) DB() *db.DB {
	return s.db
}

// stamp returns the current time formatted for storage. Successive stamps
// from one Store are strictly increasing even if the clock stalls.
func (s *Store) stamp() string {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := s.clock().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return models.FormatTime(t)
}

func newID() string {
	return uuid.NewString()
}

// where accumulates equality filters for list queries.
type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(column, value string) {
	if value == "" {
		return
	}
	w.clauses = append(w.clauses, column+" = ?")
	w.args = append(w.args, value)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// levelRank orders high/medium/low priorities most urgent first.
const levelRank = `CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END`

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// text converts an optional typed string into a query argument (nil = NULL).
func text[T ~string](p *T) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func integer(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func orDefault[T ~string](p *T, def T) string {
	if p == nil || *p == "" {
		return string(def)
	}
	return string(*p)
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

// encodeListArg is encodeList for partial updates: a nil list leaves the column unchanged.
func encodeListArg(list []string) any {
	if list == nil {
		return nil
	}
	return encodeList(list)
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return out
	}
	for _, v := range values {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case nil:
		default:
			b, _ := json.Marshal(t)
			out = append(out, string(b))
		}
	}
	return out
}

func encodeMap(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
