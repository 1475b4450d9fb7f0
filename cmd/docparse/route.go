package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/docparse/connectivity"
	"github.com/hazyhaar/docparse/dbopen"
)

// newRouteCmd edits the routes table read by a running "serve"; changes
// apply on its next data_version poll.
func newRouteCmd(a *app) *cobra.Command {
	var dbPath string
	var db *sql.DB

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Point RPC services at local handlers, remote peers or nothing",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			var err error
			db, err = dbopen.Open(dbPath, dbopen.WithMkdirAll(), dbopen.WithSchema(connectivity.Schema))
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

	var strategy, endpoint, config string
	set := &cobra.Command{
		Use:   "set SERVICE",
		Short: "Insert or replace a service route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strategy == connectivity.StrategyHTTP && endpoint == "" {
				return fmt.Errorf("strategy %q needs --endpoint", strategy)
			}
			return connectivity.SetRoute(cmd.Context(), db, args[0], strategy, endpoint, config)
		},
	}
	set.Flags().StringVar(&strategy, "strategy", connectivity.StrategyLocal, "local, http or disabled")
	set.Flags().StringVar(&endpoint, "endpoint", "", "base URL of the remote docparse /rpc")
	set.Flags().StringVar(&config, "transport-config", "{}", `transport config as JSON, e.g. {"timeout_ms":30000}`)

	del := &cobra.Command{
		Use:   "delete SERVICE",
		Short: "Remove a service route; local dispatch resumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return connectivity.DeleteRoute(cmd.Context(), db, args[0])
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
