package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/GoCodeAlone/release-action/check"
	"github.com/GoCodeAlone/release-action/config"
	"github.com/GoCodeAlone/release-action/release"
)

// fakeBytebase serves the release API endpoints used by a run.
type fakeBytebase struct {
	mu      sync.Mutex
	paths   []string
	check   string
	preview string
}

func (f *fakeBytebase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	var req struct {
		Requests []json.RawMessage `json:"requests"`
	}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &req)

	switch r.URL.Path {
	case "/v1/projects/hr/releases:check":
		_, _ = io.WriteString(w, f.check)
	case "/v1/projects/hr/sheets:batchCreate":
		sheets := make([]map[string]string, len(req.Requests))
		for i := range sheets {
			sheets[i] = map[string]string{"name": "projects/hr/sheets/" + string(rune('1'+i))}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case "/v1/projects/hr/releases":
		_, _ = io.WriteString(w, `{"name":"projects/hr/releases/42"}`)
	case "/v1/projects/hr:previewPlan":
		_, _ = io.WriteString(w, f.preview)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBytebase) calls() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.paths, " ")
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "migrations"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"001_init.sql":        "CREATE TABLE t (id INT);",
		"002_add_col_dml.sql": "INSERT INTO t VALUES (1);",
		"README.md":           "not a migration",
	} {
		if err := os.WriteFile(filepath.Join(dir, "migrations", name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testEnv(ws, url string, extra map[string]string) func(string) string {
	env := map[string]string{
		"GITHUB_WORKSPACE":   ws,
		"GITHUB_REPOSITORY":  "acme/db",
		"GITHUB_SHA":         "abc123",
		"INPUT_URL":          url,
		"INPUT_TOKEN":        "secret",
		"INPUT_PROJECT":      "projects/hr",
		"INPUT_FILE-PATTERN": "migrations/*",
		"INPUT_TARGETS":      "instances/prod/databases/db1",
	}
	for k, v := range extra {
		env[k] = v
	}
	return func(k string) string { return env[k] }
}

func TestExecuteRun(t *testing.T) {
	bb := &fakeBytebase{check: `{"results":[]}`, preview: `{"plan":{}}`}
	srv := httptest.NewServer(bb)
	defer srv.Close()

	ws := newWorkspace(t)
	output := filepath.Join(t.TempDir(), "output")
	var stdout bytes.Buffer

	err := execute(context.Background(), "run", nil, testEnv(ws, srv.URL, map[string]string{"GITHUB_OUTPUT": output}), &stdout, false)
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, stdout.String())
	}

	want := "/v1/projects/hr/releases:check /v1/projects/hr/sheets:batchCreate /v1/projects/hr/releases /v1/projects/hr:previewPlan"
	if got := bb.calls(); got != want {
		t.Errorf("calls:\n got  %s\n want %s", got, want)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "release<<ghadelimiter_") || !strings.Contains(string(data), "\nprojects/hr/releases/42\n") {
		t.Errorf("unexpected output file:\n%s", data)
	}
	if !strings.Contains(stdout.String(), "::warning::failed to get version, ignore file component=collector path=") {
		t.Errorf("expected a warning for README.md:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Release created component=release release=projects/hr/releases/42 url="+srv.URL+"/projects/hr/releases/42") {
		t.Errorf("missing release log:\n%s", stdout.String())
	}
}

func TestExecuteCheckComments(t *testing.T) {
	bb := &fakeBytebase{check: `{
		"results": [{
			"file": "migrations/001_init.sql",
			"target": "instances/prod/databases/db1",
			"advices": [{"status": "WARNING", "code": 401, "line": 1, "title": "table.require-pk", "content": "missing primary key"}],
			"affectedRows": "0",
			"riskLevel": "LOW"
		}],
		"riskLevel": "LOW"
	}`}
	srv := httptest.NewServer(bb)
	defer srv.Close()

	var (
		mu      sync.Mutex
		comment string
	)
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, "[]")
		case http.MethodPost:
			var body struct {
				Body string `json:"body"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			comment = body.Body
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id": 1}`)
		}
	}))
	defer gh.Close()

	ws := newWorkspace(t)
	event := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(event, []byte(`{"pull_request": {"number": 7}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	var stdout bytes.Buffer

	err := execute(context.Background(), "check", nil, testEnv(ws, srv.URL, map[string]string{
		"GITHUB_API_URL":      gh.URL,
		"GITHUB_TOKEN":        "gh-token",
		"GITHUB_EVENT_PATH":   event,
		"INPUT_CHECK-RELEASE": "FAIL_ON_ERROR",
	}), &stdout, true)
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, stdout.String())
	}

	if got := bb.calls(); got != "/v1/projects/hr/releases:check" {
		t.Errorf("check must not create a release, calls: %s", got)
	}
	if !strings.Contains(stdout.String(), "::warning file=migrations/001_init.sql,line=1,title=table.require-pk (401)::missing primary key") {
		t.Errorf("missing annotation:\n%s", stdout.String())
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.HasPrefix(comment, "<!--BYTEBASE_MARKER-PR_7-DO_NOT_EDIT-->\n") || !strings.Contains(comment, "0 Error(s), 1 Warning(s)") {
		t.Errorf("unexpected comment:\n%s", comment)
	}
}

func TestExecuteOutOfOrder(t *testing.T) {
	bb := &fakeBytebase{
		preview: `{"plan":{},"outOfOrderFiles":[{"database":"db1","files":["003_x.sql"]}]}`,
	}
	srv := httptest.NewServer(bb)
	defer srv.Close()

	var stdout bytes.Buffer
	err := execute(context.Background(), "run", nil, testEnv(newWorkspace(t), srv.URL, map[string]string{
		"INPUT_CHECK-RELEASE": "SKIP",
		"INPUT_TARGETS":       "",
	}), &stdout, false)
	if !errors.Is(err, release.ErrOutOfOrderFiles) {
		t.Fatalf("expected ErrOutOfOrderFiles, got %v", err)
	}
	if !strings.Contains(err.Error(), "db1:003_x.sql") {
		t.Errorf("error should list the file: %v", err)
	}
}

func TestExecuteConfigError(t *testing.T) {
	var stdout bytes.Buffer
	err := execute(context.Background(), "run", nil, testEnv(t.TempDir(), "http://unused.invalid", map[string]string{
		"INPUT_CHECK-RELEASE": "FAIL_ON_WARNING",
		"INPUT_TARGETS":       "",
	}), &stdout, false)
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) || cfgErr.Field != "targets" {
		t.Fatalf("expected targets config error, got %v", err)
	}
}

func TestExecuteFlagsOverrideInputs(t *testing.T) {
	bb := &fakeBytebase{check: `{"results":[{"file":"migrations/001_init.sql","target":"db9","advices":[{"status":"ERROR","code":1,"title":"x","content":"y"}]}]}`}
	srv := httptest.NewServer(bb)
	defer srv.Close()

	var stdout bytes.Buffer
	err := execute(context.Background(), "run", []string{"-targets", "db9", "-check-release", "FAIL_ON_WARNING"},
		testEnv(newWorkspace(t), srv.URL, nil), &stdout, false)
	if !errors.Is(err, check.ErrCheckViolation) {
		t.Fatalf("expected check violation, got %v", err)
	}
	if !strings.Contains(stdout.String(), "Targets: db9") {
		t.Errorf("flag targets not used:\n%s", stdout.String())
	}
}
