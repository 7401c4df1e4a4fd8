package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull projects and tasks from Todoist once",
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

			res, err := a.syncer.Sync(cmd.Context(), "cli")
			if err != nil {
				return fmt.Errorf("todoist sync: %w", err)
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("synced %d projects and %d tasks at %s\n", res.Projects, res.Tasks, res.SyncedAt)
			return nil
		},
	}
}
