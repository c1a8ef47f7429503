package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/prefs"
	"github.com/kalambet/prefs/internal/api"
	"github.com/kalambet/prefs/internal/config"
	"github.com/kalambet/prefs/schema"
	"github.com/kalambet/prefs/storage"
)

const testDescriptor = `name: app
file: settings
fields:
  - name: count
    type: int
    default: 0
  - name: name
    type: string
    default: ""
  - name: dark_mode
    type: bool
    default: false
    key: dark
`

// useTestConfig points every command at a fresh directory and schema.
func useTestConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(schemaPath, []byte(testDescriptor), 0o644); err != nil {
		t.Fatal(err)
	}

	c := config.Config{
		Storage: config.StorageConfig{Dir: dir, Namespace: "test", Backend: "file", Format: "toml"},
		Schema:  config.SchemaConfig{Path: schemaPath},
		Server:  config.ServerConfig{Addr: "127.0.0.1:0"},
		Log:     config.LogConfig{Level: "error"},
	}
	if mutate != nil {
		mutate(&c)
	}

	oldLoad, oldColor := loadConfig, noColor
	loadConfig = func() (config.Config, error) { return c, nil }
	noColor = true
	t.Cleanup(func() {
		loadConfig = oldLoad
		noColor = oldColor
	})
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetGetShow(t *testing.T) {
	dir := useTestConfig(t, nil)

	if _, err := run(t, "set", "count", "5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "settings.toml"))
	if err != nil {
		t.Fatalf("record not written: %v", err)
	}
	if !strings.Contains(string(data), "count = 5") {
		t.Errorf("record = %q", data)
	}

	out, err := run(t, "get", "count")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != "5\n" {
		t.Errorf("get output = %q, want 5", out)
	}

	out, err = run(t, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"count = 5", `name = ""`, "dark_mode = false"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestShowRaw(t *testing.T) {
	useTestConfig(t, nil)
	t.Cleanup(func() { showCmd.Flags().Set("raw", "false") })

	out, err := run(t, "show", "--raw")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dark = false") {
		t.Errorf("raw output should use storage keys:\n%s", out)
	}
}

// TestEditAppliesAllFields verifies edit writes every assignment.
func TestEditAppliesAllFields(t *testing.T) {
	dir := useTestConfig(t, nil)

	if _, err := run(t, "edit", "count=7", "name=x y", "dark_mode=true"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "settings.toml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"count = 7", "dark = true", "x y"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("record missing %q:\n%s", want, data)
		}
	}
}

func TestEditRejectsBadInput(t *testing.T) {
	dir := useTestConfig(t, nil)

	if _, err := run(t, "edit", "count"); err == nil || !strings.Contains(err.Error(), "field=value") {
		t.Errorf("missing '=' err = %v", err)
	}
	if _, err := run(t, "edit", "count=abc"); err == nil || !strings.Contains(err.Error(), "invalid integer") {
		t.Errorf("bad integer err = %v", err)
	}
	if _, err := run(t, "edit", "count=1", "nosuch=1"); !errors.Is(err, prefs.ErrUnknownField) {
		t.Errorf("unknown field err = %v", err)
	}
	if _, err := run(t, "set", "name", "caf\xe9"); err == nil || !strings.Contains(err.Error(), "UTF-8") {
		t.Errorf("invalid text err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.toml")); !os.IsNotExist(err) {
		t.Error("rejected edit wrote the record")
	}
}

func TestPathAndFields(t *testing.T) {
	dir := useTestConfig(t, nil)

	out, err := run(t, "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "settings.toml") {
		t.Errorf("path = %q", out)
	}

	out, err = run(t, "fields")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dark_mode bool default false (stored as dark)") {
		t.Errorf("fields output:\n%s", out)
	}
}

func TestMissingSchema(t *testing.T) {
	useTestConfig(t, func(c *config.Config) { c.Schema.Path = "" })
	if _, err := run(t, "show"); err == nil || !strings.Contains(err.Error(), "no schema descriptor") {
		t.Errorf("err = %v", err)
	}
}

// TestKVBackends verifies the sqlite and badger stores persist across commands.
func TestKVBackends(t *testing.T) {
	cases := []struct {
		backend, format, wantPath string
	}{
		{"sqlite", "yaml", "sqlite::prefs_test_settings.yaml"},
		{"badger", "toml", "badger::prefs_test_settings.toml"},
	}
	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			useTestConfig(t, func(c *config.Config) {
				c.Storage.Backend = tc.backend
				c.Storage.Format = tc.format
			})

			out, err := run(t, "path")
			if err != nil {
				t.Fatal(err)
			}
			if strings.TrimSpace(out) != tc.wantPath {
				t.Errorf("path = %q, want %q", out, tc.wantPath)
			}

			if _, err := run(t, "set", "name", "kv"); err != nil {
				t.Fatalf("set: %v", err)
			}
			out, err = run(t, "get", "name")
			if err != nil {
				t.Fatal(err)
			}
			if out != "kv\n" {
				t.Errorf("get = %q, want kv", out)
			}
		})
	}
}

func TestStrictConfig(t *testing.T) {
	dir := useTestConfig(t, func(c *config.Config) { c.Storage.Strict = true })
	if err := os.WriteFile(filepath.Join(dir, "settings.toml"), []byte(`count = "many"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "get", "count"); err == nil {
		t.Error("strict load of a mistyped value succeeded")
	}
}

func TestConfigShow(t *testing.T) {
	useTestConfig(t, nil)
	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "storage.backend = file  (PREFSCTL_BACKEND)") {
		t.Errorf("config show output:\n%s", out)
	}
	if strings.Contains(out, "server.token") {
		t.Error("config show printed a secret key")
	}
}

// startTestServer serves a memory-backed record through the real API handler
// and points the remote commands at it.
func startTestServer(t *testing.T) *prefs.Record {
	t.Helper()
	useTestConfig(t, nil)

	s, err := schema.ParseDescriptor([]byte(testDescriptor))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := prefs.Load(s, "remote", prefs.WithStore(storage.NewMemoryStore()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Close() })

	ts := httptest.NewServer(api.NewHandler(api.Deps{Record: rec, Token: "test-token"}))
	t.Cleanup(ts.Close)

	old := newAPIClient
	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: ts.URL, token: "test-token", httpClient: ts.Client()}, nil
	}
	t.Cleanup(func() { newAPIClient = old })
	return rec
}

func TestRemoteCommands(t *testing.T) {
	rec := startTestServer(t)

	if _, err := run(t, "remote", "set", "count", "12"); err != nil {
		t.Fatalf("remote set: %v", err)
	}
	if v, _ := rec.Value("count"); v != int64(12) {
		t.Errorf("server count = %v, want 12", v)
	}

	out, err := run(t, "remote", "get", "count")
	if err != nil {
		t.Fatal(err)
	}
	if out != "12\n" {
		t.Errorf("remote get = %q", out)
	}

	out, err = run(t, "remote", "edit", "name=remote", "dark_mode=true")
	if err != nil {
		t.Fatalf("remote edit: %v", err)
	}
	if !strings.Contains(out, `name = "remote"`) || !strings.Contains(out, "dark_mode = true") {
		t.Errorf("remote edit output:\n%s", out)
	}

	out, err = run(t, "remote", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "count = 12") {
		t.Errorf("remote show output:\n%s", out)
	}

	if _, err := run(t, "remote", "set", "count", "lots"); err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("remote set with bad value err = %v", err)
	}
}

func TestDecodeJSON_Unauthorized(t *testing.T) {
	rec, err := prefs.LoadTesting(schema.MustNew("unauth", "unauth", schema.Int("n", 0)))
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	ts := httptest.NewServer(api.NewHandler(api.Deps{Record: rec, Token: "right"}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "wrong", httpClient: ts.Client()}
	resp, err := client.get(context.Background(), "/prefs")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	var result any
	err = decodeJSON(resp, &result)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestRemoteServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := &apiClient{baseURL: url, token: "t", httpClient: &http.Client{Timeout: time.Second}}
	_, err := client.get(context.Background(), "/prefs")
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("err = %v, want 'not reachable'", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

// syncBuffer is a bytes.Buffer safe for one writer and one polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestWatchRecord verifies an atomic save by another writer is picked up.
func TestWatchRecord(t *testing.T) {
	dir := useTestConfig(t, nil)
	s, err := schema.ParseDescriptor([]byte(testDescriptor))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := prefs.Load(s, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- watchRecord(ctx, rec, &out) }()

	// Wait for the initial listing so the watch is registered.
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "count = 0") {
		if time.Now().After(deadline) {
			t.Fatal("watch did not print the record")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := storage.NewFileBackend(dir).Write("settings.toml", "count = 42\n"); err != nil {
		t.Fatal(err)
	}

	for !strings.Contains(out.String(), "count = 42") {
		if time.Now().After(deadline) {
			t.Fatalf("watch did not pick up the change:\n%s", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watchRecord: %v", err)
	}
}
