package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/docparse/chatstore"
	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/docparse"
)

func newChatCmd(a *app) *cobra.Command {
	var dbPath string
	var store *chatstore.Store

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Manage stored chat messages and their parsed attachments",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
			if err != nil {
				return err
			}
			store, err = chatstore.New(db)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if store != nil {
				return store.DB.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", envOr("DOCPARSE_DB", "data/docparse.db"), "SQLite database path")

	printJSON := func(cmd *cobra.Command, v any) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	// add
	var role, content, file, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Store a message, optionally parsing a file as its attachment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := store.CreateWithFile(cmd.Context(), docparse.New(a.cfg), role, content, file, password)
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
	add.Flags().StringVar(&role, "role", chatstore.RoleUser, "user, assistant or system")
	add.Flags().StringVar(&content, "content", "", "message text")
	add.Flags().StringVar(&file, "file", "", "CSV or PDF file to parse and attach")
	add.Flags().StringVar(&password, "password", "", "password for an encrypted PDF attachment")

	// list
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the most recent messages, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msgs, err := store.ListMessages(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, m := range msgs {
				ts := time.UnixMilli(m.Timestamp).UTC().Format(time.RFC3339)
				fmt.Fprintf(w, "%s\t%s\t%-9s\t%d\t%s\n", m.ID, ts, m.Role, len(m.Attachments), m.Content)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "number of messages (0 = all)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print one message with its attachments as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := store.GetMessage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}

	var newContent string
	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Replace a message's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return store.UpdateMessage(cmd.Context(), args[0], newContent)
		},
	}
	edit.Flags().StringVar(&newContent, "content", "", "new message text")
	edit.MarkFlagRequired("content")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a message and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return store.DeleteMessage(cmd.Context(), args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := store.ClearMessages(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d messages\n", n)
			return nil
		},
	}

	cmd.AddCommand(add, list, show, edit, del, clearCmd)
	return cmd
}
