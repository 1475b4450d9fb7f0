package observability

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// RegisterHTTP mounts GET /api/v1/audit?operation=&status=&since=&limit= on r.
// since is an RFC 3339 timestamp.
func (a *AuditLogger) RegisterHTTP(r chi.Router) {
	r.Get("/api/v1/audit", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		f := AuditFilter{
			Operation: q.Get("operation"),
			Status:    q.Get("status"),
			OrderBy:   q.Get("order_by"),
			OrderDir:  q.Get("order_dir"),
		}
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			f.Limit = n
		}
		if s := q.Get("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid since: want RFC 3339")
				return
			}
			f.Since = &t
		}
		entries, err := a.Query(req.Context(), f)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if entries == nil {
			entries = []*AuditEntry{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
