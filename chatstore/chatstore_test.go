package chatstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/docparse"
	"github.com/hazyhaar/docparse/value"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func pipeline() *docparse.Pipeline {
	return docparse.New(docparse.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func csvFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte("region,total\nnorth,12.5\nsouth,7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCreateAndGet_WithAttachment(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	m, err := s.CreateWithFile(ctx, pipeline(), RoleUser, "summarise this", csvFile(t), "")
	if err != nil {
		t.Fatalf("CreateWithFile: %v", err)
	}
	if !strings.HasPrefix(m.ID, "msg_") || m.Timestamp == 0 {
		t.Fatalf("message = %+v", m)
	}

	got, err := s.GetMessage(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "summarise this" || len(got.Attachments) != 1 {
		t.Fatalf("got %+v", got)
	}
	a := got.Attachments[0]
	if !strings.HasPrefix(a.ID, "att_") || a.FileName != "sales.csv" || a.FileType != docparse.FormatCSV || a.Shape != docparse.ShapeRows {
		t.Fatalf("attachment = %+v", a)
	}
	if !value.Equal(a.Data, m.Attachments[0].Data) {
		t.Fatalf("stored data %s != parsed %s", a.Data, m.Attachments[0].Data)
	}
	if a.Data.Len() != 2 {
		t.Fatalf("rows = %d", a.Data.Len())
	}
}

// WHAT: integral float cells ("3.0", "1e2") read back as Float after storage.
func TestCreateAndGet_FloatCellsKeepKind(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte("price\n3.0\n1e2\n4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := s.CreateWithFile(ctx, pipeline(), RoleUser, "prices", path, "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMessage(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	data := got.Attachments[0].Data
	if !value.Equal(data, m.Attachments[0].Data) {
		t.Fatalf("stored %s != parsed %s", data, m.Attachments[0].Data)
	}
	wantKinds := []value.Kind{value.KindFloat, value.KindFloat, value.KindInt}
	rows := data.Items()
	if len(rows) != len(wantKinds) {
		t.Fatalf("rows = %d, want %d", len(rows), len(wantKinds))
	}
	for i, want := range wantKinds {
		price, _ := rows[i].Object().Get("price")
		if price.Kind() != want {
			t.Errorf("row %d price = %s (%s), want %s", i, price, price.Kind(), want)
		}
	}
}

func TestCreateWithFile_ParseFailureStoresNothing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateWithFile(ctx, pipeline(), RoleUser, "x", "/nonexistent/a.csv", "")
	if !docparse.IsKind(err, docparse.KindNotFound) {
		t.Fatalf("err = %v", err)
	}
	msgs, _ := s.ListMessages(ctx, 0)
	if len(msgs) != 0 {
		t.Fatalf("stored %d messages after failed parse", len(msgs))
	}
}

func TestCreateMessage_InvalidRole(t *testing.T) {
	s := newStore(t)
	if err := s.CreateMessage(context.Background(), &Message{Role: "robot"}); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestListMessages_ChronologicalWithLimit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i, c := range []string{"one", "two", "three"} {
		if err := s.CreateMessage(ctx, &Message{Role: RoleUser, Content: c, Timestamp: int64(100 + i)}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListMessages(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Content != "one" || all[2].Content != "three" {
		t.Fatalf("all = %v", contents(all))
	}

	last, err := s.ListMessages(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := contents(last); got != "two,three" {
		t.Fatalf("last two = %s", got)
	}
	if last[0].Attachments == nil {
		t.Fatal("attachments should be an empty slice, not nil")
	}
}

func contents(msgs []*Message) string {
	var out []string
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return strings.Join(out, ",")
}

func TestUpdateDeleteClear(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	m, err := s.CreateWithFile(ctx, pipeline(), RoleAssistant, "draft", csvFile(t), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateMessage(ctx, m.ID, "final"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetMessage(ctx, m.ID)
	if got.Content != "final" || len(got.Attachments) != 1 {
		t.Fatalf("after update: %+v", got)
	}

	if err := s.UpdateMessage(ctx, "msg_missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}

	if err := s.DeleteMessage(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	var n int
	s.DB.QueryRow(`SELECT COUNT(*) FROM file_attachments`).Scan(&n)
	if n != 0 {
		t.Fatalf("attachments not cascaded: %d left", n)
	}
	if _, err := s.GetMessage(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}

	s.CreateMessage(ctx, &Message{Role: RoleUser, Content: "a"})
	s.CreateMessage(ctx, &Message{Role: RoleUser, Content: "b"})
	cleared, err := s.ClearMessages(ctx)
	if err != nil || cleared != 2 {
		t.Fatalf("ClearMessages = %d, %v", cleared, err)
	}
}

func TestAttachmentFrom(t *testing.T) {
	doc := docparse.NewParsedData(value.Array(), "scan.pdf", docparse.ShapePageBatches)
	a := AttachmentFrom(doc)
	if a.FileName != "scan.pdf" || a.FileType != docparse.FormatPDF || a.Shape != docparse.ShapePageBatches {
		t.Fatalf("attachment = %+v", a)
	}
}

func TestHTTP_MessageLifecycle(t *testing.T) {
	s := newStore(t)
	r := chi.NewRouter()
	s.RegisterHTTP(r, pipeline())
	srv := httptest.NewServer(r)
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"role": "user", "content": "hi", "file_path": csvFile(t)})
	resp, err := http.Post(srv.URL+"/api/v1/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var created Message
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || len(created.Attachments) != 1 {
		t.Fatalf("create: %d %+v", resp.StatusCode, created)
	}

	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/messages/"+created.ID, strings.NewReader(`{"content":"edited"}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/messages/" + created.ID)
	if err != nil {
		t.Fatal(err)
	}
	var got Message
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Content != "edited" || got.Attachments[0].Data.Len() != 2 {
		t.Fatalf("get = %+v", got)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/messages/"+created.ID, nil)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	resp, _ = http.Get(srv.URL + "/api/v1/messages/" + created.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
}

func TestHTTP_CreateRejectsBadRoleAndBadFile(t *testing.T) {
	s := newStore(t)
	r := chi.NewRouter()
	s.RegisterHTTP(r, pipeline())
	srv := httptest.NewServer(r)
	defer srv.Close()

	for body, want := range map[string]int{
		`{"role":"robot","content":"x"}`:                          http.StatusBadRequest,
		`{"role":"user","content":"x","file_path":"/nope/a.csv"}`: http.StatusUnprocessableEntity,
		`not json`: http.StatusBadRequest,
	} {
		resp, err := http.Post(srv.URL+"/api/v1/messages", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: status %d, want %d", body, resp.StatusCode, want)
		}
	}
}

// WHAT: file_path outside the pipeline's PathRoot is refused before parsing.
func TestHTTP_CreateRespectsPathRoot(t *testing.T) {
	s := newStore(t)
	pipe := docparse.New(docparse.Config{
		PathRoot: t.TempDir(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	r := chi.NewRouter()
	s.RegisterHTTP(r, pipe)
	srv := httptest.NewServer(r)
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"role": "user", "content": "x", "file_path": csvFile(t)})
	resp, err := http.Post(srv.URL+"/api/v1/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if msgs, _ := s.ListMessages(context.Background(), 0); len(msgs) != 0 {
		t.Fatalf("stored %d messages", len(msgs))
	}
}
