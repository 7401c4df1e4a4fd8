package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/p-blackswan/mission-control/internal/escalation"
	perrors "github.com/p-blackswan/mission-control/internal/errors"
	"github.com/p-blackswan/mission-control/internal/metrics"
	"github.com/p-blackswan/mission-control/internal/models"
)

const (
	dashboardReportLimit = 20
	digestTaskLimit      = 50
	digestEscalations    = 20
	digestReportWindow   = 50
	digestReportLimit    = 10
)

// Store is the persistence the service needs.
type Store interface {
	ListOrchestrationTasks(ctx context.Context) ([]models.OrchestrationTask, error)
	RecentlyUpdatedOrchestrationTasks(ctx context.Context, limit int) ([]models.OrchestrationTask, error)
	CreateReport(ctx context.Context, r *models.WorkerReport) (bool, error)
	GetReport(ctx context.Context, id string) (*models.WorkerReport, error)
	ListReports(ctx context.Context, limit int) ([]models.WorkerReport, error)
	LatestReport(ctx context.Context, eventType string) (*models.WorkerReport, error)
	CreateEscalation(ctx context.Context, e *models.Escalation) error
	ListEscalations(ctx context.Context, status string, limit int) ([]models.Escalation, error)
	ListBots(ctx context.Context, logLimit int) ([]models.Bot, error)
}

// Service ingests worker reports and assembles orchestration read models.
type Service struct {
	store    Store
	notifier escalation.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewService creates a Service. notifier and m may be nil.
func NewService(st Store, notifier escalation.Notifier, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "orchestration").Logger(),
	}
}

// IngestResult is the answer to a report submission.
type IngestResult struct {
	OK         bool                 `json:"ok"`
	ID         string               `json:"id"`
	Duplicate  bool                 `json:"duplicate,omitempty"`
	Report     *models.WorkerReport `json:"report"`
	Escalation *models.Escalation   `json:"escalation"`
}

// IngestReport stores a report verbatim and, for failure events, opens an
// escalation and notifies. A replayed event_id is acknowledged without a
// second escalation.
func (s *Service) IngestReport(ctx context.Context, in models.ReportInput) (*IngestResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	report := &models.WorkerReport{
		ID:        in.EventID,
		EventType: in.EventType,
		BotID:     in.BotID,
		TaskID:    in.TaskID,
		Payload:   in.Payload,
	}
	if in.Ts != nil {
		report.Ts = *in.Ts
	}

	inserted, err := s.store.CreateReport(ctx, report)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("report_id", report.ID).Str("event_type", report.EventType).Logger()
	label := models.EventLabel(report.EventType)

	res := &IngestResult{OK: true, ID: report.ID, Report: report}
	if !inserted {
		s.metrics.RecordReport(label, "duplicate")
		log.Info().Msg("duplicate report ignored")
		stored, err := s.store.GetReport(ctx, report.ID)
		if err != nil {
			return nil, err
		}
		res.Report = stored
		res.Duplicate = true
		return res, nil
	}
	s.metrics.RecordReport(label, "inserted")

	esc, ok := Derive(*report)
	if !ok {
		log.Debug().Msg("report recorded")
		return res, nil
	}
	if err := s.store.CreateEscalation(ctx, &esc); err != nil {
		return nil, fmt.Errorf("report %s saved but escalation failed: %w", report.ID, err)
	}
	s.metrics.RecordEscalation(label)
	log.Warn().Str("escalation_id", esc.ID).Str("reason", esc.Reason).Msg("escalation opened")
	res.Escalation = &esc

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, escalation.FromEscalation(esc, report.EventType)); err != nil {
			s.metrics.RecordError("orchestration", "notify")
			log.Error().Err(err).Str("escalation_id", esc.ID).Msg("escalation notification failed")
		}
	}
	return res, nil
}

// Stats are the dashboard counters.
type Stats struct {
	TasksTotal      int `json:"tasksTotal"`
	TasksDone       int `json:"tasksDone"`
	TasksBlocked    int `json:"tasksBlocked"`
	OpenEscalations int `json:"openEscalations"`
	BotsTotal       int `json:"botsTotal"`
}

// Dashboard is the single-response orchestration overview.
type Dashboard struct {
	OK          bool                       `json:"ok"`
	Error       string                     `json:"error,omitempty"`
	Details     string                     `json:"details,omitempty"`
	Stats       Stats                      `json:"stats"`
	Tasks       []models.OrchestrationTask `json:"tasks"`
	Reports     []models.WorkerReport      `json:"reports"`
	Escalations []models.Escalation        `json:"escalations"`
	Bots        []models.Bot               `json:"bots"`
}

// Dashboard reads tasks, recent reports, open escalations and bots
// concurrently. It never fails: a read error yields ok=false with zeroed data.
func (s *Service) Dashboard(ctx context.Context) *Dashboard {
	d := &Dashboard{OK: true}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Tasks, err = s.store.ListOrchestrationTasks(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Reports, err = s.store.ListReports(gctx, dashboardReportLimit)
		return err
	})
	g.Go(func() (err error) {
		d.Escalations, err = s.store.ListEscalations(gctx, string(models.EscalationOpen), 0)
		return err
	})
	g.Go(func() (err error) {
		d.Bots, err = s.store.ListBots(gctx, 0)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("dashboard unavailable")
		return &Dashboard{
			Error:       "Dashboard API unavailable",
			Details:     err.Error(),
			Tasks:       []models.OrchestrationTask{},
			Reports:     []models.WorkerReport{},
			Escalations: []models.Escalation{},
			Bots:        []models.Bot{},
		}
	}

	d.Stats = Stats{
		TasksTotal:      len(d.Tasks),
		OpenEscalations: len(d.Escalations),
		BotsTotal:       len(d.Bots),
	}
	for _, t := range d.Tasks {
		switch t.Status {
		case models.OrchDone:
			d.Stats.TasksDone++
		case models.OrchBlocked:
			d.Stats.TasksBlocked++
		}
	}
	return d
}

// Digest is the short status summary for chat updates.
type Digest struct {
	Wins            int                   `json:"wins"`
	Active          int                   `json:"active"`
	Blocked         int                   `json:"blocked"`
	OpenEscalations int                   `json:"openEscalations"`
	LatestReports   []models.WorkerReport `json:"latestReports"`
}

// Digest summarises the 50 most recently updated tasks, open escalations and
// the latest reports.
func (s *Service) Digest(ctx context.Context) (*Digest, error) {
	tasks, err := s.store.RecentlyUpdatedOrchestrationTasks(ctx, digestTaskLimit)
	if err != nil {
		return nil, err
	}
	escalations, err := s.store.ListEscalations(ctx, string(models.EscalationOpen), digestEscalations)
	if err != nil {
		return nil, err
	}
	reports, err := s.store.ListReports(ctx, digestReportWindow)
	if err != nil {
		return nil, err
	}

	d := &Digest{OpenEscalations: len(escalations)}
	for _, t := range tasks {
		switch t.Status {
		case models.OrchDone:
			d.Wins++
		case models.OrchRunning, models.OrchAssigned:
			d.Active++
		case models.OrchBlocked:
			d.Blocked++
		}
	}
	if len(reports) > digestReportLimit {
		reports = reports[:digestReportLimit]
	}
	d.LatestReports = reports
	return d, nil
}

// SupportReport is the latest support-bot daily report, flattened.
type SupportReport struct {
	HasReport        bool            `json:"hasReport"`
	Summary          string          `json:"summary,omitempty"`
	Details          string          `json:"details,omitempty"`
	BotID            *string         `json:"botId,omitempty"`
	Ts               string          `json:"ts,omitempty"`
	TicketsToday     json.RawMessage `json:"ticketsToday,omitempty"`
	ResolvedToday    json.RawMessage `json:"resolvedToday,omitempty"`
	Backlog          json.RawMessage `json:"backlog,omitempty"`
	TopObstacles     json.RawMessage `json:"topObstacles,omitempty"`
	ImportantTickets json.RawMessage `json:"importantTickets,omitempty"`
	NeedsOwner       json.RawMessage `json:"needsOwner,omitempty"`
}

// SupportReport returns the newest SUPPORT_DAILY_REPORT by event time. It
// never fails; read errors are described in the result.
func (s *Service) SupportReport(ctx context.Context) *SupportReport {
	r, err := s.store.LatestReport(ctx, models.EventSupportDailyReport)
	switch {
	case errors.Is(err, perrors.ErrNotFound):
		return &SupportReport{Summary: "No support report submitted yet."}
	case err != nil:
		s.logger.Error().Err(err).Msg("support report unavailable")
		return &SupportReport{Summary: "Support report API unavailable", Details: err.Error()}
	}

	payload := gjson.ParseBytes(r.Payload)
	return &SupportReport{
		HasReport:        true,
		Summary:          str(payload.Get("summary")),
		BotID:            r.BotID,
		Ts:               r.Ts,
		TicketsToday:     rawOr(payload.Get("tickets_today"), "null"),
		ResolvedToday:    rawOr(payload.Get("resolved_today"), "null"),
		Backlog:          rawOr(payload.Get("backlog"), "null"),
		TopObstacles:     rawOr(payload.Get("top_obstacles"), "[]"),
		ImportantTickets: rawOr(payload.Get("important_tickets"), "[]"),
		NeedsOwner:       rawOr(payload.Get("needs_owner"), "[]"),
	}
}

// rawOr returns the field's JSON text, or def when it is missing or null.
func rawOr(r gjson.Result, def string) json.RawMessage {
	if !r.Exists() || r.Type == gjson.Null {
		return json.RawMessage(def)
	}
	return json.RawMessage(r.Raw)
}
