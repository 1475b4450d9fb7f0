package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/docparse/docparse"
)

func newParseCmd(a *app) *cobra.Command {
	var (
		payloadOnly bool
		compact     bool
		password    string
		batchSize   int
		noHeaders   bool
		delimiter   string
		strict      bool
	)
	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse files and print their structured data as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("batch-size") {
				cfg.PDF.BatchSize = batchSize
				cfg.CSV.BatchSize = batchSize
			}
			if flags.Changed("no-headers") {
				h := !noHeaders
				cfg.CSV.HasHeaders = &h
			}
			if flags.Changed("delimiter") {
				cfg.CSV.Delimiter = delimiter
			}
			if flags.Changed("strict") {
				cfg.CSV.Strict = strict
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			pipe := docparse.New(cfg).WithPassword(password)

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			for _, path := range args {
				var out any
				var err error
				if payloadOnly {
					out, err = pipe.ParseFile(cmd.Context(), path)
				} else {
					out, err = pipe.Parse(cmd.Context(), path)
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(out); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&payloadOnly, "payload-only", false, "print only the payload, without the file envelope")
	f.BoolVar(&compact, "compact", false, "print one JSON document per line")
	f.StringVar(&password, "password", "", "password for encrypted PDFs (prefer DOCPARSE_PDF_PASSWORD)")
	f.IntVar(&batchSize, "batch-size", 0, "group rows/pages into arrays of at most N (0 = off)")
	f.BoolVar(&noHeaders, "no-headers", false, "CSV has no header row; name columns column_1..column_N")
	f.StringVar(&delimiter, "delimiter", ",", `CSV delimiter: one ASCII character or "tab"`)
	f.BoolVar(&strict, "strict", false, "reject CSV records whose field count differs from the first")
	return cmd
}

func newDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect FILE...",
		Short: "Print the format chosen for each path by extension",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe := docparse.New(a.cfg)
			failed := 0
			for _, path := range args {
				format, err := pipe.Detect(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", format, path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths unsupported", failed, len(args))
			}
			return nil
		},
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, f := range docparse.SupportedFormats() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
		},
	}
}
