package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/docparse/chatstore"
	"github.com/hazyhaar/docparse/connectivity"
	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/docparse"
	"github.com/hazyhaar/docparse/kit"
	"github.com/hazyhaar/docparse/observability"
	"github.com/hazyhaar/docparse/shield"
)

const maxRPCBody = 1 << 20

func newServeCmd(a *app) *cobra.Command {
	var (
		addr       string
		dbPath     string
		rpcTimeout time.Duration
		retention  time.Duration
		pathRoot   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parse API over HTTP, MCP and RPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			cfg := servedConfig(a.cfg, pathRoot)
			if cfg.DenyPaths {
				a.logger.Info("path requests disabled; set --path-root to enable")
			}
			return serve(cmd.Context(), a.logger, cfg, serveOptions{
				addr: addr, dbPath: dbPath, rpcTimeout: rpcTimeout, retention: retention,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", envOr("DOCPARSE_ADDR", ":8080"), "HTTP listen address")
	f.StringVar(&dbPath, "db", envOr("DOCPARSE_DB", "data/docparse.db"), "SQLite database for messages and routes")
	f.DurationVar(&rpcTimeout, "rpc-timeout", 2*time.Minute, "deadline for one RPC call")
	f.DurationVar(&retention, "audit-retention", 30*24*time.Hour, "age after which audit entries are deleted (0 = keep)")
	f.StringVar(&pathRoot, "path-root", envOr("DOCPARSE_PATH_ROOT", ""), "directory that path-based requests may read from (empty = uploads only)")
	return cmd
}

// servedConfig confines network callers: path requests only under a root,
// and none at all without one.
func servedConfig(cfg docparse.Config, pathRoot string) docparse.Config {
	if pathRoot != "" {
		cfg.PathRoot = pathRoot
	}
	if cfg.PathRoot == "" {
		cfg.DenyPaths = true
	}
	return cfg
}

type serveOptions struct {
	addr       string
	dbPath     string
	rpcTimeout time.Duration
	retention  time.Duration
}

func serve(ctx context.Context, logger *slog.Logger, cfg docparse.Config, opts serveOptions) error {
	db, err := dbopen.Open(opts.dbPath, dbopen.WithMkdirAll(),
		dbopen.WithSchema(connectivity.Schema), dbopen.WithSchema(observability.Schema))
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := chatstore.New(db)
	if err != nil {
		return err
	}

	audit := observability.NewAuditLogger(db, 1000, observability.WithLogger(logger))
	defer audit.Close()
	if opts.retention > 0 {
		go auditCleanup(ctx, logger, audit, opts.retention)
	}

	pipe := docparse.New(cfg)
	pipe.Use(observability.Middleware(audit))

	// Connectivity: local handlers, overridable per service from the routes table.
	router := connectivity.New(
		connectivity.WithLogger(logger),
		connectivity.WithMiddleware(
			connectivity.Recovery(logger),
			connectivity.Logging(logger),
			connectivity.Timeout(opts.rpcTimeout),
		),
	)
	defer router.Close()
	router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory())
	pipe.RegisterConnectivity(router)
	go router.Watch(ctx, db, 2*time.Second)

	// MCP.
	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "docparse", Version: "1.0.0"}, nil)
	pipe.RegisterMCP(mcpSrv)

	guard, err := shield.New(db)
	if err != nil {
		return err
	}
	go guard.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(guard.Middlewares()...)
	r.Use(requestContext)

	r.Get("/health", healthHandler(db))
	pipe.RegisterHTTP(r)
	store.RegisterHTTP(r, pipe)
	audit.RegisterHTTP(r)
	r.Post("/rpc/{service}", rpcHandler(router))
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("docparse: listening", "addr", opts.addr, "db", opts.dbPath, "services", router.Services())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("docparse: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func auditCleanup(ctx context.Context, logger *slog.Logger, audit *observability.AuditLogger, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := audit.Cleanup(ctx, retention)
		if err != nil {
			logger.Warn("audit cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("audit cleanup", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// requestContext copies chi's request id and the client address into the
// kit context keys read by endpoint logging.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// rpcHandler exposes router.Call: the body is the JSON payload, the answer
// is the service's JSON response.
func rpcHandler(router *connectivity.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := chi.URLParam(r, "service")
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRPCBody))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
			return
		}
		out, err := router.Call(r.Context(), service, payload)
		if err != nil {
			writeJSON(w, rpcStatus(err), map[string]string{"error": err.Error(), "service": service})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	}
}

func rpcStatus(err error) int {
	var notFound *connectivity.ErrServiceNotFound
	var disabled *connectivity.ErrServiceDisabled
	var remote *connectivity.ErrRemoteStatus
	var perr *docparse.Error
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &disabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, docparse.ErrPathNotAllowed):
		return http.StatusForbidden
	case errors.As(err, &remote):
		return http.StatusBadGateway
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
