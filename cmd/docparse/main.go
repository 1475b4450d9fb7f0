// CLAUDE:SUMMARY CLI entry point for docparse: parse/detect files, serve the HTTP+MCP+RPC API, manage stored chat messages.
// Command docparse extracts structured data from CSV and PDF files.
//
// Usage:
//
//	docparse parse report.csv                 # print the parsed envelope as JSON
//	docparse parse --payload-only scan.pdf    # print only the payload
//	docparse detect file.PDF                  # print the detected format
//	docparse serve --addr :8080 --db docparse.db
//	docparse chat add --role user --content "see attached" --file sales.csv
//
// Settings are layered: --config YAML file, then .env and environment
// (DOCPARSE_PDF_PASSWORD, DOCPARSE_DB, DOCPARSE_ADDR, LOG_LEVEL), then flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/docparse/docparse"
)

// app holds what every subcommand needs after flag parsing.
type app struct {
	configPath string
	logLevel   string
	logger     *slog.Logger
	cfg        docparse.Config
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("docparse: .env not loaded", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		a.reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError writes a fatal error. Argument and flag errors fail before
// the logger exists, so they go to w as plain text.
func (a *app) reportError(w io.Writer, err error) {
	if a.logger != nil {
		a.logger.Error("docparse: fatal", "error", err)
		return
	}
	fmt.Fprintln(w, "docparse:", err)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "docparse",
		Short:         "Extract structured, typed data from CSV and PDF files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to docparse.yaml config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")

	root.AddCommand(
		newParseCmd(a),
		newDetectCmd(a),
		newFormatsCmd(),
		newServeCmd(a),
		newChatCmd(a),
		newRouteCmd(a),
		newGuardCmd(a),
		newAuditCmd(a),
	)
	return root
}

func (a *app) init() error {
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(a.logLevel)}))
	slog.SetDefault(a.logger)

	if a.configPath != "" {
		cfg, err := docparse.LoadConfigFile(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = *cfg
	}
	if pw := os.Getenv("DOCPARSE_PDF_PASSWORD"); pw != "" {
		a.cfg.PDF.Password = pw
	}
	a.cfg.Logger = a.logger
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
