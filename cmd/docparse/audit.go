package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/observability"
)

func newAuditCmd(a *app) *cobra.Command {
	var (
		dbPath    string
		operation string
		status    string
		limit     int
		prune     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recorded parse and detect calls, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
			if err != nil {
				return err
			}
			defer db.Close()
			log := observability.NewAuditLogger(db, 1, observability.WithLogger(a.logger))
			defer log.Close()

			if prune > 0 {
				n, err := log.Cleanup(cmd.Context(), prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", n)
				return nil
			}

			entries, err := log.Query(cmd.Context(), observability.AuditFilter{
				Operation: operation, Status: status, Limit: limit,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%-15s\t%-4s\t%-9s\t%5dms\t%s%s\n",
					e.Timestamp.UTC().Format(time.RFC3339), e.EntryID, e.Operation, e.Transport,
					e.Status, e.DurationMs, e.Parameters, errSuffix(e))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbPath, "db", envOr("DOCPARSE_DB", "data/docparse.db"), "SQLite database path")
	f.StringVar(&operation, "operation", "", "only docparse_parse or docparse_detect")
	f.StringVar(&status, "status", "", "only success, error, timeout or cancelled")
	f.IntVar(&limit, "limit", 20, "number of entries")
	f.DurationVar(&prune, "prune", 0, "delete entries older than this instead of listing")
	return cmd
}

func errSuffix(e *observability.AuditEntry) string {
	if e.ErrorCode == "" {
		return ""
	}
	return "\t" + e.ErrorCode
}
