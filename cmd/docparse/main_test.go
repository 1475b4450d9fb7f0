package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docparse/connectivity"
	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/docparse"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&app{})
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCmd_PayloadOnly(t *testing.T) {
	path := writeCSV(t, "a,b\n1,x\n")
	out, err := run(t, "parse", "--payload-only", "--compact", path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := strings.TrimSpace(out); got != `[{"a":1,"b":"x"}]` {
		t.Errorf("output = %s", got)
	}
}

func TestParseCmd_EnvelopeAndFlags(t *testing.T) {
	path := writeCSV(t, "1;2\n3;4\n5;6\n")
	out, err := run(t, "parse", "--compact", "--no-headers", "--delimiter", ";", "--batch-size", "2", path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var env struct {
		FileName string            `json:"file_name"`
		Shape    string            `json:"shape"`
		Payload  [][]map[string]int `json:"payload"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if env.FileName != "data.csv" || env.Shape != string(docparse.ShapeRowBatches) {
		t.Errorf("envelope = %+v", env)
	}
	if len(env.Payload) != 2 || len(env.Payload[0]) != 2 || env.Payload[1][0]["column_2"] != 6 {
		t.Errorf("payload = %v", env.Payload)
	}
}

func TestParseCmd_InvalidDelimiter(t *testing.T) {
	path := writeCSV(t, "a\n1\n")
	if _, err := run(t, "parse", "--delimiter", "ab", path); err == nil {
		t.Fatal("expected delimiter error")
	}
}

func TestDetectCmd(t *testing.T) {
	out, err := run(t, "detect", "report.CSV", "scan.pdf")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !strings.Contains(out, "csv\treport.CSV") || !strings.Contains(out, "pdf\tscan.pdf") {
		t.Errorf("output = %q", out)
	}

	_, err = run(t, "detect", "notes.txt")
	if err == nil {
		t.Fatal("expected failure for unsupported path")
	}
}

func TestFormatsCmd(t *testing.T) {
	out, err := run(t, "formats")
	if err != nil {
		t.Fatal(err)
	}
	if out != "csv\npdf\n" {
		t.Errorf("output = %q", out)
	}
}

// WHAT: chat add/list/clear round-trip through a file-backed database.
// WHY: the CLI opens its own store per invocation; state must persist.
func TestChatCmd_Lifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chat.db")
	csvPath := writeCSV(t, "k,v\nx,1\n")

	out, err := run(t, "chat", "--db", db, "add", "--role", "user", "--content", "hello", "--file", csvPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	var msg struct {
		ID          string `json:"id"`
		Attachments []struct {
			FileName string `json:"file_name"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal([]byte(out), &msg); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if msg.ID == "" || len(msg.Attachments) != 1 || msg.Attachments[0].FileName != "data.csv" {
		t.Fatalf("message = %+v", msg)
	}

	out, err = run(t, "chat", "--db", db, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, msg.ID) || !strings.Contains(out, "hello") {
		t.Errorf("list = %q", out)
	}

	if _, err := run(t, "chat", "--db", db, "edit", msg.ID, "--content", "bye"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	out, err = run(t, "chat", "--db", db, "clear")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out, "deleted 1 messages") {
		t.Errorf("clear = %q", out)
	}
	if _, err := run(t, "chat", "--db", db, "show", msg.ID); err == nil {
		t.Error("expected not found after clear")
	}
}

func TestChatCmd_AddRejectsBadFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chat.db")
	if _, err := run(t, "chat", "--db", db, "add", "--content", "x", "--file", "missing.csv"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRouteCmd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "routes.db")
	if _, err := run(t, "route", "--db", db, "set", "docparse_parse", "--strategy", "disabled"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := run(t, "route", "--db", db, "set", "docparse_parse", "--strategy", "http"); err == nil {
		t.Error("expected error: http without endpoint")
	}

	conn, err := dbopen.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	var strategy string
	if err := conn.QueryRow(`SELECT strategy FROM routes WHERE service_name = ?`, "docparse_parse").Scan(&strategy); err != nil {
		t.Fatal(err)
	}
	if strategy != connectivity.StrategyDisabled {
		t.Errorf("strategy = %q", strategy)
	}

	if _, err := run(t, "route", "--db", db, "delete", "docparse_parse"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func rpcServer(t *testing.T) *httptest.Server {
	t.Helper()
	router := connectivity.New()
	t.Cleanup(func() { router.Close() })
	docparse.New(docparse.Config{}).RegisterConnectivity(router)

	r := chi.NewRouter()
	r.Use(requestContext)
	r.Post("/rpc/{service}", rpcHandler(router))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCHandler(t *testing.T) {
	srv := rpcServer(t)

	resp, err := http.Post(srv.URL+"/rpc/docparse_detect", "application/json", strings.NewReader(`{"path":"a.pdf"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got docparse.DetectResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusOK || got.Format != docparse.FormatPDF {
		t.Errorf("status %d, format %q", resp.StatusCode, got.Format)
	}
}

func TestRPCHandler_Errors(t *testing.T) {
	srv := rpcServer(t)
	cases := []struct {
		service, body string
		want          int
	}{
		{"nope", `{}`, http.StatusNotFound},
		{"docparse_detect", `{"path":"a.txt"}`, http.StatusUnprocessableEntity},
		{"docparse_detect", `not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, err := http.Post(srv.URL+"/rpc/"+tc.service, "application/json", strings.NewReader(tc.body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s %s: status %d, want %d", tc.service, tc.body, resp.StatusCode, tc.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug").String() != "DEBUG" || parseLevel("bogus").String() != "INFO" {
		t.Error("unexpected level mapping")
	}
}

func TestGuardCmd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "guard.db")
	if _, err := run(t, "guard", "--db", db, "limit", "POST /api/v1/parse", "--max", "5"); err != nil {
		t.Fatalf("limit: %v", err)
	}
	if _, err := run(t, "guard", "--db", db, "limit", "parse"); err == nil {
		t.Error("expected error for endpoint without method")
	}
	if _, err := run(t, "guard", "--db", db, "maintenance", "on", "--message", "brb"); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if _, err := run(t, "guard", "--db", db, "maintenance", "sideways"); err == nil {
		t.Error("expected error for invalid maintenance arg")
	}

	conn, err := dbopen.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	var max int
	var active bool
	conn.QueryRow(`SELECT max_requests FROM rate_limits WHERE endpoint = 'POST /api/v1/parse'`).Scan(&max)
	conn.QueryRow(`SELECT active FROM maintenance WHERE id = 1`).Scan(&active)
	if max != 5 || !active {
		t.Errorf("max=%d active=%v", max, active)
	}
}

func TestAuditCmd_EmptyAndPrune(t *testing.T) {
	db := filepath.Join(t.TempDir(), "audit.db")
	out, err := run(t, "audit", "--db", db)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if out != "" {
		t.Errorf("output = %q", out)
	}
	out, err = run(t, "audit", "--db", db, "--prune", "24h")
	if err != nil || !strings.Contains(out, "pruned 0 entries") {
		t.Errorf("prune: %q, %v", out, err)
	}
}

// WHAT: a missing argument fails before logger setup and still reaches stderr.
// WHY: SilenceErrors hides cobra's own message.
func TestArgErrorReported(t *testing.T) {
	a := &app{}
	root := newRootCmd(a)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"parse"})
	err := root.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("parse with no file should fail")
	}
	if !strings.Contains(err.Error(), "requires at least 1 arg(s)") {
		t.Errorf("error = %v", err)
	}

	var stderr bytes.Buffer
	a.reportError(&stderr, err)
	if got := stderr.String(); !strings.HasPrefix(got, "docparse: ") || !strings.Contains(got, "requires at least 1 arg(s)") {
		t.Errorf("stderr = %q", got)
	}
}

func TestUnknownFlagReported(t *testing.T) {
	a := &app{}
	root := newRootCmd(a)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"parse", "--no-such-flag", "x.csv"})
	err := root.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("unknown flag should fail")
	}
	var stderr bytes.Buffer
	a.reportError(&stderr, err)
	if !strings.Contains(stderr.String(), "unknown flag: --no-such-flag") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestServedConfig(t *testing.T) {
	if cfg := servedConfig(docparse.Config{}, ""); !cfg.DenyPaths {
		t.Error("no root should disable path requests")
	}
	if cfg := servedConfig(docparse.Config{}, "/srv/files"); cfg.DenyPaths || cfg.PathRoot != "/srv/files" {
		t.Errorf("flag root: %+v", cfg)
	}
	if cfg := servedConfig(docparse.Config{PathRoot: "/data"}, ""); cfg.DenyPaths || cfg.PathRoot != "/data" {
		t.Errorf("config root: %+v", cfg)
	}
}

func TestRPCStatus_PathNotAllowed(t *testing.T) {
	err := docparse.New(docparse.Config{DenyPaths: true}).AllowPath("a.csv")
	if got := rpcStatus(err); got != http.StatusForbidden {
		t.Errorf("rpcStatus = %d, want 403", got)
	}
}
