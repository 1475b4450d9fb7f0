package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/shield"
)

// newGuardCmd edits the rate-limit and maintenance rules that a running
// "serve" reloads every few seconds.
func newGuardCmd(a *app) *cobra.Command {
	var dbPath string
	var db *sql.DB

	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Manage API rate limits and maintenance mode",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			var err error
			db, err = dbopen.Open(dbPath, dbopen.WithMkdirAll(), dbopen.WithSchema(shield.Schema))
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", envOr("DOCPARSE_DB", "data/docparse.db"), "SQLite database path")

	var maxRequests, window int
	limit := &cobra.Command{
		Use:   `limit "METHOD /path"`,
		Short: "Limit each client to N requests per window on an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := args[0]
			if !strings.Contains(endpoint, " /") {
				return fmt.Errorf(`endpoint %q: want "METHOD /path"`, endpoint)
			}
			return shield.SetRateLimit(cmd.Context(), db, endpoint, maxRequests, window)
		},
	}
	limit.Flags().IntVar(&maxRequests, "max", 30, "requests allowed per window")
	limit.Flags().IntVar(&window, "window", 60, "window length in seconds")

	unlimit := &cobra.Command{
		Use:   `unlimit "METHOD /path"`,
		Short: "Remove an endpoint's rate limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shield.DeleteRateLimit(cmd.Context(), db, args[0])
		},
	}

	var message string
	maintenance := &cobra.Command{
		Use:       "maintenance on|off",
		Short:     "Answer 503 to every API request, or stop doing so",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return shield.SetMaintenance(cmd.Context(), db, args[0] == "on", message)
		},
	}
	maintenance.Flags().StringVar(&message, "message", "", "message returned while in maintenance")

	cmd.AddCommand(limit, unlimit, maintenance)
	return cmd
}
