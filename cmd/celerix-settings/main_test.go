package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-settings/internal/config"
	"github.com/celerix-dev/celerix-settings/pkg/engine"
	"github.com/celerix-dev/celerix-settings/pkg/settings"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		DataDir:      t.TempDir(),
		Backend:      config.BackendFile,
		BundleID:     "dev.celerix.cli",
		LogVerbosity: settings.LogNone,
	}
}

func exec(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), cfg, args, &out)
	return out.String(), err
}

func TestParseValue(t *testing.T) {
	cases := map[string]engine.Value{
		"true":                           engine.Bool(true),
		"42":                             engine.Int(42),
		"1.5":                            engine.Float(1.5),
		"hello":                          engine.String("hello"),
		"1":                              engine.Int(1),
		`{"kind":"string","value":"42"}`: engine.String("42"),
		`{"oops"`:                        engine.String(`{"oops"`),
	}
	for in, want := range cases {
		if got := parseValue(in); !got.Equal(want) {
			t.Errorf("parseValue(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetGetDel(t *testing.T) {
	cfg := testConfig(t)

	if _, err := exec(t, cfg, "set", "custom:sync", "count", "3"); err != nil {
		t.Fatalf("SET failed: %v", err)
	}
	out, err := exec(t, cfg, "GET", "custom:sync", "count")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	if !strings.Contains(out, `"int"`) || !strings.Contains(out, "3") {
		t.Errorf("Unexpected GET output: %s", out)
	}

	if _, err := exec(t, cfg, "DEL", "custom:sync", "count"); err != nil {
		t.Fatalf("DEL failed: %v", err)
	}
	if _, err := exec(t, cfg, "GET", "custom:sync", "count"); !errors.Is(err, settings.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestListAndClear(t *testing.T) {
	cfg := testConfig(t)
	exec(t, cfg, "SET", "auth", "token", "x")
	exec(t, cfg, "SET", "standard", "flag", "true")

	out, err := exec(t, cfg, "LIST")
	if err != nil || !strings.Contains(out, "AuthRelated_dev.celerix.cli") {
		t.Errorf("Unexpected LIST output %q (%v)", out, err)
	}

	if _, err := exec(t, cfg, "CLEAR", "auth"); err != nil {
		t.Fatal(err)
	}
	out, _ = exec(t, cfg, "DUMP", "auth")
	if strings.TrimSpace(out) != "{}" {
		t.Errorf("Expected empty dump, got %s", out)
	}
	out, _ = exec(t, cfg, "DUMP", "standard")
	if !strings.Contains(out, "flag") {
		t.Errorf("Expected standard partition untouched, got %s", out)
	}
}

func TestUsageErrors(t *testing.T) {
	cfg := testConfig(t)
	if _, err := exec(t, cfg, "GET", "standard"); !errors.Is(err, errUsage) {
		t.Errorf("Expected usage error, got %v", err)
	}
	if _, err := exec(t, cfg, "PING"); !errors.Is(err, errUsage) {
		t.Errorf("Expected usage error, got %v", err)
	}
	if _, err := exec(t, cfg, "GET", "nowhere", "k"); err == nil {
		t.Error("Expected error for unknown partition")
	}
}

func TestSecrets(t *testing.T) {
	cfg := testConfig(t)
	if _, err := exec(t, cfg, "SECRET-SET", "token", "s3cret"); err == nil {
		t.Error("Expected error without CELERIX_VAULT_KEY")
	}

	cfg.VaultKey = strings.Repeat("0f", 32)
	if _, err := exec(t, cfg, "SECRET-SET", "token", "s3cret"); err != nil {
		t.Fatal(err)
	}
	out, err := exec(t, cfg, "SECRET-GET", "token")
	if err != nil || strings.TrimSpace(out) != "s3cret" {
		t.Errorf("Expected s3cret, got %q (%v)", out, err)
	}
	out, _ = exec(t, cfg, "DUMP", "auth")
	if strings.Contains(out, "s3cret") {
		t.Errorf("Secret stored in the clear: %s", out)
	}
}

func TestMigrate(t *testing.T) {
	cfg := testConfig(t)
	exec(t, cfg, "SET", "custom:sync", "name", "a")

	if _, err := exec(t, cfg, "MIGRATE", "file", "file"); err == nil {
		t.Error("Expected error migrating onto itself")
	}
	if _, err := exec(t, cfg, "MIGRATE", "file", "sqlite"); err != nil {
		t.Fatalf("MIGRATE failed: %v", err)
	}

	cfg.Backend = config.BackendSQLite
	out, err := exec(t, cfg, "GET", "custom:sync", "name")
	if err != nil || !strings.Contains(out, `"a"`) {
		t.Errorf("Expected migrated value, got %q (%v)", out, err)
	}
}

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

func waitForOutput(t *testing.T, out *syncBuffer, substr string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(out.String(), substr) >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d x %q in output:\n%s", n, substr, out.String())
}

func TestWatchSeesWritesFromOtherRuns(t *testing.T) {
	prev := pollInterval
	pollInterval = 10 * time.Millisecond
	defer func() { pollInterval = prev }()

	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Backend = backend

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			out := &syncBuffer{}
			done := make(chan error, 1)
			go func() {
				done <- run(ctx, cfg, []string{"WATCH", "custom:sync", "count"}, out)
			}()

			waitForOutput(t, out, "key not found", 1)

			// Each exec opens its own engine, as a separate CLI run would.
			if _, err := exec(t, cfg, "SET", "custom:sync", "count", "1"); err != nil {
				t.Fatal(err)
			}
			waitForOutput(t, out, `"value":1}`, 1)

			if _, err := exec(t, cfg, "SET", "custom:sync", "count", "2"); err != nil {
				t.Fatal(err)
			}
			waitForOutput(t, out, `"value":2}`, 1)

			if _, err := exec(t, cfg, "DEL", "custom:sync", "count"); err != nil {
				t.Fatal(err)
			}
			waitForOutput(t, out, "key not found", 2)

			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("WATCH returned %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("WATCH did not stop after cancel")
			}

			// Unchanged values are printed once, not on every poll
			if n := strings.Count(out.String(), `"value":1}`); n != 1 {
				t.Errorf("Expected value 1 printed once, got %d times:\n%s", n, out.String())
			}
		})
	}
}

func TestWatchRejectsUnopenablePartition(t *testing.T) {
	cfg := testConfig(t)
	_, err := exec(t, cfg, "WATCH", "custom:"+strings.Repeat("x", 250), "k")
	if !errors.Is(err, settings.ErrCannotOpenPartition) {
		t.Errorf("Expected ErrCannotOpenPartition, got %v", err)
	}
}
