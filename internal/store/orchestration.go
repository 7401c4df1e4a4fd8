package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/p-blackswan/mission-control/internal/db"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/models"
)

const (
	orchTaskColumns   = `id, title, objective, definition_of_done, owner_bot, priority, status, due_at, constraints_json, created_at, updated_at`
	reportColumns     = `id, event_type, bot_id, task_id, payload_json, ts, created_at`
	escalationColumns = `id, task_id, bot_id, reason, options_json, recommendation, status, created_at, updated_at`
)

func scanOrchestrationTask(row db.Scanner) (models.OrchestrationTask, error) {
	var (
		t                               models.OrchestrationTask
		objective, dod, ownerBot, dueAt sql.NullString
		constraints                     string
	)
	err := row.Scan(&t.ID, &t.Title, &objective, &dod, &ownerBot, &t.Priority, &t.Status,
		&dueAt, &constraints, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.Objective = nullable(objective)
	t.DefinitionOfDone = nullable(dod)
	t.OwnerBot = nullable(ownerBot)
	t.DueAt = nullable(dueAt)
	t.Constraints = decodeList(constraints)
	return t, nil
}

func scanReport(row db.Scanner) (models.WorkerReport, error) {
	var (
		r             models.WorkerReport
		botID, taskID sql.NullString
		payload       string
	)
	err := row.Scan(&r.ID, &r.EventType, &botID, &taskID, &payload, &r.Ts, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.BotID = nullable(botID)
	r.TaskID = nullable(taskID)
	r.Payload = rawJSON(payload)
	return r, nil
}

func scanEscalation(row db.Scanner) (models.Escalation, error) {
	var (
		e                             models.Escalation
		taskID, botID, recommendation sql.NullString
		options                       string
	)
	err := row.Scan(&e.ID, &taskID, &botID, &e.Reason, &options, &recommendation,
		&e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	e.TaskID = nullable(taskID)
	e.BotID = nullable(botID)
	e.Recommendation = nullable(recommendation)
	e.Options = decodeList(options)
	return e, nil
}

func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(s)
}

// ListOrchestrationTasks returns all orchestration tasks, newest first.
func (s *Store) ListOrchestrationTasks(ctx context.Context) ([]models.OrchestrationTask, error) {
	tasks, err := db.Collect(ctx,
		s.db.Prepare(`SELECT `+orchTaskColumns+` FROM orchestration_tasks ORDER BY created_at DESC`),
		scanOrchestrationTask)
	if err != nil {
		return nil, fmt.Errorf("failed to list orchestration tasks: %w", err)
	}
	return tasks, nil
}

// RecentlyUpdatedOrchestrationTasks returns up to limit tasks by most recent update.
func (s *Store) RecentlyUpdatedOrchestrationTasks(ctx context.Context, limit int) ([]models.OrchestrationTask, error) {
	tasks, err := db.Collect(ctx,
		s.db.Prepare(`SELECT `+orchTaskColumns+` FROM orchestration_tasks ORDER BY updated_at DESC LIMIT ?`),
		scanOrchestrationTask, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent orchestration tasks: %w", err)
	}
	return tasks, nil
}

// GetOrchestrationTask returns one orchestration task or ErrNotFound.
func (s *Store) GetOrchestrationTask(ctx context.Context, id string) (*models.OrchestrationTask, error) {
	var t models.OrchestrationTask
	err := s.db.Prepare(`SELECT `+orchTaskColumns+` FROM orchestration_tasks WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		t, err = scanOrchestrationTask(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get orchestration task %s: %w", id, err)
	}
	return &t, nil
}

// CreateOrchestrationTask inserts a task (priority P2, status queued unless given).
func (s *Store) CreateOrchestrationTask(ctx context.Context, in models.OrchestrationTaskInput) (*models.OrchestrationTask, error) {
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = newID()
	}
	now := s.stamp()
	priority := models.DefaultOrchestrationPrio
	if in.Priority != nil {
		priority = *in.Priority
	}
	_, err := s.db.Prepare(`INSERT INTO orchestration_tasks (`+orchTaskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`).Run(ctx,
		id, *in.Title, text(in.Objective), text(in.DefinitionOfDone), text(in.OwnerBot),
		priority, orDefault(in.Status, models.OrchQueued), text(in.DueAt),
		encodeList(in.Constraints), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestration task: %w", err)
	}
	return s.GetOrchestrationTask(ctx, id)
}

// UpdateOrchestrationTask records a change reported for a task.
func (s *Store) UpdateOrchestrationTask(ctx context.Context, id string, in models.OrchestrationTaskInput) (*models.OrchestrationTask, error) {
	if err := in.Validate(false); err != nil {
		return nil, err
	}
	n, err := s.db.Prepare(`UPDATE orchestration_tasks SET
		title = COALESCE(?, title),
		objective = COALESCE(?, objective),
		definition_of_done = COALESCE(?, definition_of_done),
		owner_bot = COALESCE(?, owner_bot),
		priority = COALESCE(?, priority),
		status = COALESCE(?, status),
		due_at = COALESCE(?, due_at),
		constraints_json = COALESCE(?, constraints_json),
		updated_at = ?
		WHERE id = ?`).Run(ctx,
		text(in.Title), text(in.Objective), text(in.DefinitionOfDone), text(in.OwnerBot),
		text(in.Priority), text(in.Status), text(in.DueAt), encodeListArg(in.Constraints),
		s.stamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update orchestration task %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("failed to update orchestration task %s: %w", id, perrors.ErrNotFound)
	}
	return s.GetOrchestrationTask(ctx, id)
}

// CreateReport stores a worker report with its event time in TimeLayout. A
// report whose id was already recorded is ignored and inserted is false.
func (s *Store) CreateReport(ctx context.Context, r *models.WorkerReport) (inserted bool, err error) {
	if r.Ts != "" {
		ts, err := models.NormalizeTime(r.Ts)
		if err != nil {
			return false, perrors.Invalid("ts", "must be an RFC 3339 timestamp")
		}
		r.Ts = ts
	}
	if r.ID == "" {
		r.ID = newID()
	}
	r.CreatedAt = s.stamp()
	if r.Ts == "" {
		r.Ts = r.CreatedAt
	}
	if len(r.Payload) == 0 || string(r.Payload) == "null" {
		r.Payload = json.RawMessage(`{}`)
	}
	n, err := s.db.Prepare(`INSERT INTO worker_reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`).Run(ctx,
		r.ID, r.EventType, text(r.BotID), text(r.TaskID), string(r.Payload), r.Ts, r.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save report: %w", err)
	}
	return n > 0, nil
}

// GetReport returns one worker report or ErrNotFound.
func (s *Store) GetReport(ctx context.Context, id string) (*models.WorkerReport, error) {
	var r models.WorkerReport
	err := s.db.Prepare(`SELECT `+reportColumns+` FROM worker_reports WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		r, err = scanReport(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return &r, nil
}

// ListReports returns up to limit reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]models.WorkerReport, error) {
	reports, err := db.Collect(ctx,
		s.db.Prepare(`SELECT `+reportColumns+` FROM worker_reports ORDER BY created_at DESC LIMIT ?`),
		scanReport, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// LatestReport returns the report of eventType with the latest event time.
func (s *Store) LatestReport(ctx context.Context, eventType string) (*models.WorkerReport, error) {
	var r models.WorkerReport
	err := s.db.Prepare(`SELECT `+reportColumns+` FROM worker_reports WHERE event_type = ? ORDER BY ts DESC LIMIT 1`).
		Get(ctx, func(row db.Scanner) error {
			var err error
			r, err = scanReport(row)
			return err
		}, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest %s report: %w", eventType, err)
	}
	return &r, nil
}

// CreateEscalation stores a derived escalation, assigning id and timestamps.
func (s *Store) CreateEscalation(ctx context.Context, e *models.Escalation) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Status == "" {
		e.Status = models.EscalationOpen
	}
	if e.Options == nil {
		e.Options = []string{}
	}
	now := s.stamp()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := s.db.Prepare(`INSERT INTO escalations (`+escalationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`).Run(ctx,
		e.ID, text(e.TaskID), text(e.BotID), e.Reason, encodeList(e.Options),
		text(e.Recommendation), string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	return nil
}

// ListEscalations returns escalations newest first, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Store) ListEscalations(ctx context.Context, status string, limit int) ([]models.Escalation, error) {
	var w where
	w.eq("status", status)
	q := `SELECT ` + escalationColumns + ` FROM escalations` + w.String() + ` ORDER BY created_at DESC`
	args := w.args
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	escalations, err := db.Collect(ctx, s.db.Prepare(q), scanEscalation, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	return escalations, nil
}

// GetEscalation returns one escalation or ErrNotFound.
func (s *Store) GetEscalation(ctx context.Context, id string) (*models.Escalation, error) {
	var e models.Escalation
	err := s.db.Prepare(`SELECT `+escalationColumns+` FROM escalations WHERE id = ?`).Get(ctx, func(row db.Scanner) error {
		var err error
		e, err = scanEscalation(row)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation %s: %w", id, err)
	}
	return &e, nil
}

// UpdateEscalation records a human decision on an escalation.
func (s *Store) UpdateEscalation(ctx context.Context, id string, in models.EscalationUpdate) (*models.Escalation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	n, err := s.db.Prepare(`UPDATE escalations SET
		status = COALESCE(?, status),
		recommendation = COALESCE(?, recommendation),
		updated_at = ?
		WHERE id = ?`).Run(ctx, text(in.Status), text(in.Recommendation), s.stamp(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update escalation %s: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("failed to update escalation %s: %w", id, perrors.ErrNotFound)
	}
	return s.GetEscalation(ctx, id)
}
