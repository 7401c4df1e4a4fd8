package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/mission-control/internal/models"
	"github.com/p-blackswan/mission-control/internal/store"
)

type statusReport struct {
	Driver           string  `json:"driver"`
	SchemaVersion    int     `json:"schemaVersion"`
	Projects         int     `json:"projects"`
	Tasks            int     `json:"tasks"`
	Bots             int     `json:"bots"`
	OpenEscalations  int     `json:"openEscalations"`
	LastTodoistSync  *string `json:"lastTodoistSync"`
	LastCalendarSync *string `json:"lastCalendarSync"`
}

func collectStatus(ctx context.Context, st *store.Store, driver string) (*statusReport, error) {
	r := &statusReport{Driver: driver}
	var err error
	if r.SchemaVersion, err = st.DB().SchemaVersion(ctx); err != nil {
		return nil, err
	}
	if r.Projects, err = st.CountProjects(ctx); err != nil {
		return nil, err
	}
	if r.Tasks, err = st.CountTasks(ctx); err != nil {
		return nil, err
	}
	if r.Bots, err = st.CountBots(ctx); err != nil {
		return nil, err
	}
	open, err := st.ListEscalations(ctx, string(models.EscalationOpen), 0)
	if err != nil {
		return nil, err
	}
	r.OpenEscalations = len(open)
	meta, err := st.SyncMetadata(ctx)
	if err != nil {
		return nil, err
	}
	r.LastTodoistSync = meta.LastTodoistSync
	r.LastCalendarSync = meta.LastCalendarSync
	return r, nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show row counts and last sync times",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			r, err := collectStatus(cmd.Context(), a.store, cfg.Driver())
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(r)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Item", "Value"})
			tw.AppendRows([]table.Row{
				{"Driver", r.Driver},
				{"Schema version", r.SchemaVersion},
				{"Projects", r.Projects},
				{"Tasks", r.Tasks},
				{"Bots", r.Bots},
				{"Open escalations", r.OpenEscalations},
				{"Last Todoist sync", orNever(r.LastTodoistSync)},
				{"Last calendar sync", orNever(r.LastCalendarSync)},
			})
			tw.Render()
			return nil
		},
	}
}

func orNever(s *string) string {
	if s == nil {
		return "never"
	}
	return *s
}
