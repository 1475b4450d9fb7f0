// CLAUDE:SUMMARY HTTP guard middleware for the docparse API: security headers, per-IP rate limits and maintenance mode, configured from SQLite.
// Package shield guards the docparse JSON API.
//
// Usage:
//
//	g, err := shield.New(db)
//	go g.Run(ctx)
//	r.Use(g.Middlewares()...)
//
// Rules live in two tables (see Schema) so an operator can throttle parse
// uploads or put the service in maintenance without a restart.
package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

// Guard bundles the middlewares of this package over one database.
type Guard struct {
	Limiter     *RateLimiter
	Maintenance *MaintenanceMode
}

// New applies Schema to db and loads the current rules. Paths under
// /health bypass both rate limits and maintenance.
func New(db *sql.DB) (*Guard, error) {
	if err := Init(db); err != nil {
		return nil, err
	}
	return &Guard{
		Limiter:     NewRateLimiter(db, "/health"),
		Maintenance: NewMaintenanceMode(db, "/health"),
	}, nil
}

// Middlewares returns maintenance, headers then rate limiting, outermost first.
func (g *Guard) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		g.Maintenance.Middleware,
		SecurityHeaders(DefaultHeaders()),
		g.Limiter.Middleware,
	}
}

// Run reloads rules every 5 seconds and drops expired rate buckets every
// 5 minutes until ctx is done.
func (g *Guard) Run(ctx context.Context) {
	reload := time.NewTicker(5 * time.Second)
	gc := time.NewTicker(5 * time.Minute)
	defer reload.Stop()
	defer gc.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-reload.C:
			g.Limiter.reload(ctx)
			g.Maintenance.reload(ctx)
		case <-gc.C:
			g.Limiter.gc()
		}
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
