package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/p-blackswan/mission-control/internal/api"
	"github.com/p-blackswan/mission-control/internal/calendar"
	"github.com/p-blackswan/mission-control/internal/config"
	"github.com/p-blackswan/mission-control/internal/db"
	"github.com/p-blackswan/mission-control/internal/escalation"
	"github.com/p-blackswan/mission-control/internal/health"
	"github.com/p-blackswan/mission-control/internal/metrics"
	"github.com/p-blackswan/mission-control/internal/orchestration"
	"github.com/p-blackswan/mission-control/internal/store"
	"github.com/p-blackswan/mission-control/internal/todoist"
)

// app holds the process-scoped components shared by every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	db       *db.DB
	store    *store.Store
	metrics  *metrics.Metrics
	todoist  *todoist.Client
	syncer   *todoist.Syncer
	calendar *calendar.Runner
}

// dbOptions selects the engine. DATABASE_URL is only a connection string for
// Postgres; SQLite always lives under DATA_DIR.
func dbOptions(cfg *config.Config) (db.Options, error) {
	dialect, err := db.ParseDialect(cfg.Driver())
	if err != nil {
		return db.Options{}, err
	}
	opts := db.Options{Dialect: dialect, DataDir: cfg.DataDir}
	if dialect == db.DialectPostgres {
		opts.DSN = cfg.DatabaseURL
	}
	return opts, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	opts, err := dbOptions(cfg)
	if err != nil {
		return nil, err
	}
	database, err := db.Open(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		store:    store.New(database, logger),
		metrics:  metrics.New(),
		calendar: calendar.NewRunner(cfg.CalendarBin, cfg.CalendarTimeout, logger),
	}

	// A nil *Client must not end up inside the Source interface.
	var source todoist.Source
	if cfg.TodoistEnabled() {
		a.todoist = todoist.NewClient(cfg.TodoistAPIURL, &todoist.BearerAuth{Token: cfg.TodoistAPIToken}, cfg.TodoistTimeout, logger)
		source = a.todoist
		logger.Info().Str("url", cfg.TodoistAPIURL).Msg("Todoist client initialized")
	} else {
		logger.Info().Msg("Todoist not configured, skipping")
	}
	a.syncer = todoist.NewSyncer(source, a.store, a.metrics, logger)

	return a, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close database")
	}
}

func (a *app) seed(ctx context.Context) {
	if !a.cfg.SeedSampleData {
		return
	}
	seeded, err := a.store.SeedIfEmpty(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("sample data seeding failed (non-fatal)")
		return
	}
	if seeded {
		a.logger.Info().Msg("seeded sample data into empty database")
	}
}

// notifier fans escalations out to every configured channel. The log
// notifier is always present.
func (a *app) notifier() escalation.Notifier {
	cfg, logger := a.cfg, a.logger
	notifiers := []escalation.Notifier{escalation.NewLogNotifier(logger)}

	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, escalation.NewSlackWebhookNotifier(cfg.SlackWebhookURL, logger))
		logger.Info().Msg("escalation: slack webhook notifier active")
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifiers = append(notifiers, escalation.NewSlackNotifier(slack.New(cfg.SlackBotToken), cfg.SlackChannel, logger))
		logger.Info().Str("channel", cfg.SlackChannel).Msg("escalation: slack bot notifier active")
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		notifiers = append(notifiers, escalation.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger))
		logger.Info().Int64("chat_id", cfg.TelegramChatID).Msg("escalation: telegram notifier active")
	}
	multi := escalation.NewMultiNotifier(notifiers...)
	logger.Info().Int("targets", multi.Len()).Msg("escalation notifiers configured")
	return multi
}

func (a *app) checker() *health.Checker {
	checker := health.NewChecker(a.logger)
	checker.Register(api.CheckDatabase, health.PingCheck(a.db))
	checker.Register("calendar", func(ctx context.Context) health.Result {
		if !a.calendar.Available() {
			return health.Result{Status: health.StatusDegraded, Error: "calendar CLI not found on PATH"}
		}
		return health.OK()
	})
	a.logger.Debug().Strs("checks", checker.Names()).Msg("health checks registered")
	return checker
}

func (a *app) server() *api.Server {
	return api.NewServer(a.cfg, api.Deps{
		Store:         a.store,
		Todoist:       a.todoist,
		Syncer:        a.syncer,
		Calendar:      a.calendar,
		Orchestration: orchestration.NewService(a.store, a.notifier(), a.metrics, a.logger),
		Checker:       a.checker(),
		Metrics:       a.metrics,
	}, a.logger)
}
