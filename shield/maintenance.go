package shield

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
)

// MaintenanceMode answers 503 to every request while the maintenance row
// is active. The flag is cached in memory and refreshed by Guard.Run.
type MaintenanceMode struct {
	db      *sql.DB
	active  atomic.Bool
	message atomic.Value // string
	exclude []string
}

// NewMaintenanceMode loads the flag from db. Paths under excludePrefixes
// are never blocked.
func NewMaintenanceMode(db *sql.DB, excludePrefixes ...string) *MaintenanceMode {
	m := &MaintenanceMode{db: db, exclude: excludePrefixes}
	m.message.Store("service under maintenance")
	m.reload(context.Background())
	return m
}

// Active reports whether maintenance mode is on.
func (m *MaintenanceMode) Active() bool { return m.active.Load() }

// Message returns the current maintenance message.
func (m *MaintenanceMode) Message() string {
	s, _ := m.message.Load().(string)
	return s
}

func (m *MaintenanceMode) reload(ctx context.Context) {
	var active bool
	var message string
	err := m.db.QueryRowContext(ctx, `SELECT active, message FROM maintenance WHERE id = 1`).Scan(&active, &message)
	if err != nil {
		m.active.Store(false)
		return
	}
	if message != "" {
		m.message.Store(message)
	}
	if was := m.active.Swap(active); was != active {
		slog.Warn("maintenance: mode changed", "active", active, "message", message)
	}
}

// Middleware blocks non-excluded requests while maintenance is active.
func (m *MaintenanceMode) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.active.Load() {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range m.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Retry-After", "300")
		writeJSONError(w, http.StatusServiceUnavailable, m.Message())
	})
}
