package chatstore

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docparse/docparse"
)

// RegisterHTTP mounts the message API on r. pipe parses files named by
// file_path on creation.
//
//	GET    /api/v1/messages?limit=N
//	POST   /api/v1/messages       {"role", "content", "file_path", "password"}
//	DELETE /api/v1/messages
//	GET    /api/v1/messages/{id}
//	PATCH  /api/v1/messages/{id}  {"content"}
//	DELETE /api/v1/messages/{id}
func (s *Store) RegisterHTTP(r chi.Router, pipe *docparse.Pipeline) {
	r.Route("/api/v1/messages", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			limit := 0
			if v := req.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
					return
				}
				limit = n
			}
			msgs, err := s.ListMessages(req.Context(), limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, msgs)
		})

		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			req.Body = http.MaxBytesReader(w, req.Body, 1<<20)
			var body struct {
				Role     string `json:"role"`
				Content  string `json:"content"`
				FilePath string `json:"file_path"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if err := validRole(body.Role); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if body.FilePath != "" {
				if err := pipe.AllowPath(body.FilePath); err != nil {
					writeError(w, http.StatusForbidden, err)
					return
				}
			}
			m, err := s.CreateWithFile(req.Context(), pipe, body.Role, body.Content, body.FilePath, body.Password)
			if err != nil {
				status := http.StatusInternalServerError
				if docparse.KindOf(err) != "" {
					status = http.StatusUnprocessableEntity
				}
				writeError(w, status, err)
				return
			}
			writeJSON(w, http.StatusCreated, m)
		})

		r.Delete("/", func(w http.ResponseWriter, req *http.Request) {
			n, err := s.ClearMessages(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			m, err := s.GetMessage(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, http.StatusOK, m)
		})

		r.Patch("/{id}", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Content *string `json:"content"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Content == nil {
				writeError(w, http.StatusBadRequest, errors.New("content is required"))
				return
			}
			id := chi.URLParam(req, "id")
			if err := s.UpdateMessage(req.Context(), id, *body.Content); err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "updated"})
		})

		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			if err := s.DeleteMessage(req.Context(), chi.URLParam(req, "id")); err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		})
	})
}

func statusOf(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
