package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/docparse/idgen"
)

// Statuses stored in audit_log.status.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

// AuditEntry is one recorded operation.
type AuditEntry struct {
	EntryID    string    `json:"entry_id"`
	Timestamp  time.Time `json:"timestamp"`
	Operation  string    `json:"operation"` // docparse_parse, docparse_detect
	Transport  string    `json:"transport"` // http, mcp, rpc
	RequestID  string    `json:"request_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`

	Parameters   string `json:"parameters"`       // JSON, secrets removed
	Result       string `json:"result,omitempty"` // JSON, or a size summary for large results
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	Status       string `json:"status"`
}

// AuditFilter selects entries for Query.
type AuditFilter struct {
	Since     *time.Time
	Until     *time.Time
	Operation string
	Status    string
	Limit     int    // default 100
	OrderBy   string // "timestamp" (default) or "duration_ms"
	OrderDir  string // "ASC" or "DESC" (default)
}

// AuditLogger persists entries in batches from a background goroutine.
type AuditLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	every  time.Duration
	ch     chan *AuditEntry
	stop   chan struct{}
	done   chan struct{}
}

// AuditOption configures an AuditLogger.
type AuditOption func(*AuditLogger)

// WithIDGenerator sets the entry ID generator.
func WithIDGenerator(gen idgen.Generator) AuditOption {
	return func(a *AuditLogger) { a.newID = gen }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) AuditOption {
	return func(a *AuditLogger) { a.logger = l }
}

// WithFlushInterval sets how often queued entries are written (default 5s).
func WithFlushInterval(d time.Duration) AuditOption {
	return func(a *AuditLogger) { a.every = d }
}

// NewAuditLogger starts an async audit logger with room for bufferSize
// queued entries.
func NewAuditLogger(db *sql.DB, bufferSize int, opts ...AuditOption) *AuditLogger {
	a := &AuditLogger{
		db:     db,
		newID:  idgen.Prefixed("aud_", idgen.Default),
		logger: slog.Default(),
		every:  5 * time.Second,
		ch:     make(chan *AuditEntry, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	go a.flushLoop()
	return a
}

// Log inserts an entry synchronously.
func (a *AuditLogger) Log(ctx context.Context, e *AuditEntry) error {
	a.fillDefaults(e)
	return a.insert(ctx, e)
}

// LogAsync queues an entry. A full buffer falls back to a synchronous insert.
func (a *AuditLogger) LogAsync(e *AuditEntry) {
	a.fillDefaults(e)
	select {
	case a.ch <- e:
	default:
		a.logger.Warn("audit buffer full, sync fallback", "operation", e.Operation)
		if err := a.insert(context.Background(), e); err != nil {
			a.logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Query returns entries matching f, newest first by default.
func (a *AuditLogger) Query(ctx context.Context, f AuditFilter) ([]*AuditEntry, error) {
	q := `SELECT entry_id, timestamp, operation, transport, request_id, remote_addr,
		parameters, result, error_code, error_message, duration_ms, status
		FROM audit_log WHERE 1=1`
	var args []any

	if f.Since != nil {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	if f.Until != nil {
		q += " AND timestamp <= ?"
		args = append(args, f.Until.UnixMilli())
	}
	if f.Operation != "" {
		q += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}

	orderBy := "timestamp"
	switch f.OrderBy {
	case "", "timestamp":
	case "duration_ms":
		orderBy = f.OrderBy
	default:
		return nil, fmt.Errorf("invalid order_by column: %q", f.OrderBy)
	}
	orderDir := "DESC"
	switch strings.ToUpper(f.OrderDir) {
	case "", "DESC":
	case "ASC":
		orderDir = "ASC"
	default:
		return nil, fmt.Errorf("invalid order_dir: %q", f.OrderDir)
	}
	q += fmt.Sprintf(" ORDER BY %s %s, entry_id %s LIMIT ?", orderBy, orderDir, orderDir)
	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts int64
		var requestID, remoteAddr, result, errCode, errMsg sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&e.EntryID, &ts, &e.Operation, &e.Transport, &requestID, &remoteAddr,
			&e.Parameters, &result, &errCode, &errMsg, &duration, &e.Status); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		e.RequestID = requestID.String
		e.RemoteAddr = remoteAddr.String
		e.Result = result.String
		e.ErrorCode = errCode.String
		e.ErrorMessage = errMsg.String
		e.DurationMs = duration.Int64
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Cleanup deletes entries older than retention.
func (a *AuditLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	res, err := a.db.ExecContext(ctx, "DELETE FROM audit_log WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit log: %w", err)
	}
	return res.RowsAffected()
}

// Close drains the queue and stops the flush goroutine.
func (a *AuditLogger) Close() error {
	close(a.stop)
	<-a.done
	return nil
}

func (a *AuditLogger) fillDefaults(e *AuditEntry) {
	if e.EntryID == "" {
		e.EntryID = a.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Parameters == "" {
		e.Parameters = "{}"
	}
	if e.Status == "" {
		if e.ErrorMessage != "" {
			e.Status = StatusError
		} else {
			e.Status = StatusSuccess
		}
	}
}

const insertSQL = `INSERT INTO audit_log
	(entry_id, timestamp, operation, transport, request_id, remote_addr,
	 parameters, result, error_code, error_message, duration_ms, status)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`

func entryArgs(e *AuditEntry) []any {
	return []any{
		e.EntryID, e.Timestamp.UnixMilli(), e.Operation, e.Transport,
		nullable(e.RequestID), nullable(e.RemoteAddr),
		e.Parameters, nullable(e.Result), nullable(e.ErrorCode), nullable(e.ErrorMessage),
		e.DurationMs, e.Status,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (a *AuditLogger) insert(ctx context.Context, e *AuditEntry) error {
	_, err := a.db.ExecContext(ctx, insertSQL, entryArgs(e)...)
	return err
}

func (a *AuditLogger) flushLoop() {
	defer close(a.done)
	ticker := time.NewTicker(a.every)
	defer ticker.Stop()
	batch := make([]*AuditEntry, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			a.logger.Error("audit: begin tx", "error", err)
			return
		}
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			tx.Rollback()
			a.logger.Error("audit: prepare", "error", err)
			return
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.ExecContext(ctx, entryArgs(e)...); err != nil {
				a.logger.Error("audit: insert", "error", err, "entry_id", e.EntryID)
			}
		}
		if err := tx.Commit(); err != nil {
			a.logger.Error("audit: commit", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-a.stop:
			for {
				select {
				case e := <-a.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-a.ch:
			batch = append(batch, e)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
