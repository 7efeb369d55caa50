package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/marquee/pkg/cache"
	"mercator-hq/marquee/pkg/cli"
	"mercator-hq/marquee/pkg/config"
)

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cacheFlags.key, cacheFlags.prefix, cacheFlags.all, cacheFlags.output = "", "", false, "text"
	validateFlags.output = "text"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeTestConfig writes a two-route config whose durable cache lives in a
// temp SQLite file. It returns the config path and the cache path.
func writeTestConfig(t *testing.T, durable bool) (string, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache", "marquee.db")
	content := `
routes:
  - name: images
    class: media
    prefixes: ["/t/p/"]
    origins:
      - {name: tmdb, url: "https://image.tmdb.org", priority: 0}
      - {name: mirror, url: "https://img.mirror.example", priority: 1}
    ttl: 12h
    failover: true
  - name: api
    class: api
    prefixes: ["/3/"]
    origins:
      - {name: tmdb-api, url: "https://api.themoviedb.org"}
    ttl: 10m
    store: memory

cache:
  durable:
    enabled: ` + boolString(durable) + `
    backend: sqlite
    sqlite:
      path: "` + filepath.ToSlash(dbPath) + `"
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path, dbPath
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// seedDurable stores snapshots directly in the durable SQLite cache.
func seedDurable(t *testing.T, dbPath string, ttl time.Duration, keys ...string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		t.Fatal(err)
	}
	backend, err := cache.NewSQLiteBackend(cache.SQLiteBackendConfig{Path: dbPath}, cache.BackendOptions{})
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}
	store := cache.NewStore(config.StoreDurable, backend, cache.WithCodec(cache.Codec{Compress: true}))
	defer store.Close()

	for _, key := range keys {
		snap := &cache.Snapshot{
			StatusCode: 200,
			Header:     map[string][]string{"Content-Type": {"image/jpeg"}},
			Body:       []byte("jpeg"),
		}
		if _, err := store.Put(context.Background(), key, snap, ttl); err != nil {
			t.Fatalf("Put(%q) error = %v", key, err)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	path, _ := writeTestConfig(t, true)

	out, err := executeCommand(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, out)
	}

	for _, want := range []string{
		"Configuration valid (2 routes)",
		"images",
		"tmdb,mirror",
		"12h0m0s",
		"durable",
		"memory",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommand_JSON(t *testing.T) {
	path, _ := writeTestConfig(t, true)

	out, err := executeCommand(t, "validate", "--config", path, "--output", "json")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}

	var rows []map[string]string
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1]["ROUTE"] != "api" || rows[1]["FAILOVER"] != "false" {
		t.Errorf("unexpected api row: %v", rows[1])
	}
}

func TestValidateCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode int
	}{
		{
			name: "route without origins",
			content: `
routes:
  - name: api
    prefixes: ["/3/"]
`,
			wantCode: cli.ExitConfigError,
		},
		{
			name:     "missing file",
			content:  "",
			wantCode: cli.ExitConfigError,
		},
		{
			name: "bad origin url",
			content: `
routes:
  - name: api
    prefixes: ["/3/"]
    origins:
      - {name: broken, url: "::not a url"}
`,
			wantCode: cli.ExitConfigError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
					t.Fatal(err)
				}
			}

			_, err := executeCommand(t, "validate", "--config", path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d (err: %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestCacheListAndPurge(t *testing.T) {
	path, dbPath := writeTestConfig(t, true)
	seedDurable(t, dbPath, time.Hour,
		"GET https://image.tmdb.org/t/p/w92/a.jpg",
		"GET https://image.tmdb.org/t/p/w92/b.jpg",
		"GET https://image.tmdb.org/t/p/w500/c.jpg",
	)

	out, err := executeCommand(t, "cache", "list", "--config", path, "--prefix", "GET https://image.tmdb.org/t/p/w92/")
	if err != nil {
		t.Fatalf("cache list error = %v", err)
	}
	if !strings.Contains(out, "w92/a.jpg") || !strings.Contains(out, "w92/b.jpg") {
		t.Errorf("list missing w92 keys:\n%s", out)
	}
	if strings.Contains(out, "w500") {
		t.Errorf("list should be filtered by prefix:\n%s", out)
	}

	out, err = executeCommand(t, "cache", "purge", "--config", path, "--prefix", "GET https://image.tmdb.org/t/p/w92/")
	if err != nil {
		t.Fatalf("cache purge error = %v", err)
	}
	if !strings.Contains(out, "Purged 2 entries") {
		t.Errorf("purge output = %q", out)
	}

	out, err = executeCommand(t, "cache", "list", "--config", path, "--output", "csv")
	if err != nil {
		t.Fatalf("cache list error = %v", err)
	}
	want := "KEY\nGET https://image.tmdb.org/t/p/w500/c.jpg\n"
	if out != want {
		t.Errorf("list after purge = %q, want %q", out, want)
	}
}

func TestCachePurge_Key(t *testing.T) {
	path, dbPath := writeTestConfig(t, true)
	seedDurable(t, dbPath, time.Hour,
		"GET https://image.tmdb.org/t/p/w92/a.jpg",
		"GET https://image.tmdb.org/t/p/w92/a.jpg.bak",
	)

	if _, err := executeCommand(t, "cache", "purge", "--config", path, "--key", "GET https://image.tmdb.org/t/p/w92/a.jpg"); err != nil {
		t.Fatalf("cache purge --key error = %v", err)
	}

	out, err := executeCommand(t, "cache", "list", "--config", path, "--output", "csv")
	if err != nil {
		t.Fatalf("cache list error = %v", err)
	}
	want := "KEY\nGET https://image.tmdb.org/t/p/w92/a.jpg.bak\n"
	if out != want {
		t.Errorf("list after purge = %q, want %q", out, want)
	}
}

func TestCachePurge_RequiresOneScope(t *testing.T) {
	path, _ := writeTestConfig(t, true)

	tests := []struct {
		name string
		args []string
	}{
		{"none", nil},
		{"key and all", []string{"--key", "GET https://a.example/x", "--all"}},
		{"prefix and all", []string{"--prefix", "GET ", "--all"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"cache", "purge", "--config", path}, tt.args...)
			if _, err := executeCommand(t, args...); err == nil {
				t.Fatal("expected scope error")
			}
		})
	}
}

func TestCacheSweep(t *testing.T) {
	path, dbPath := writeTestConfig(t, true)
	seedDurable(t, dbPath, time.Millisecond, "GET https://image.tmdb.org/t/p/w92/old.jpg")
	seedDurable(t, dbPath, time.Hour, "GET https://image.tmdb.org/t/p/w92/new.jpg")
	time.Sleep(20 * time.Millisecond)

	out, err := executeCommand(t, "cache", "sweep", "--config", path)
	if err != nil {
		t.Fatalf("cache sweep error = %v", err)
	}
	if !strings.Contains(out, "Removed 1 expired entries") {
		t.Errorf("sweep output = %q", out)
	}
}

func TestCacheCommands_DurableDisabled(t *testing.T) {
	path, _ := writeTestConfig(t, false)

	_, err := executeCommand(t, "cache", "list", "--config", path)
	if err == nil {
		t.Fatal("expected error when durable cache is disabled")
	}
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %T, want *cli.ConfigError", err)
	}
}
