package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// script writes an executable shell script into a temp dir.
func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCommand_Accept(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{Command: script(t, `cat >/dev/null; echo '{"accept": true}'`)}, testLogger())

	got, err := c.Run(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("expected query unchanged, got %q", got)
	}
}

func TestCommand_Reject(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{
		Command: script(t, `cat >/dev/null; echo '{"accept": false, "error_message": "orders are off limits"}'`),
	}, testLogger())

	_, err := c.Run(context.Background(), "SELECT * FROM orders")
	if err == nil || err.Error() != "orders are off limits" {
		t.Fatalf("expected hook message, got %v", err)
	}
}

func TestCommand_RejectWithoutMessage(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{Command: script(t, `cat >/dev/null; echo '{"accept": false}'`)}, testLogger())

	_, err := c.Run(context.Background(), "SELECT 1")
	if err == nil || err.Error() != "query rejected by hook" {
		t.Fatalf("expected default rejection, got %v", err)
	}
}

func TestCommand_RewritesFromStdin(t *testing.T) {
	t.Parallel()
	// Echoes the statement back with a LIMIT appended.
	c := NewCommand(Config{
		Command: script(t, `q=$(cat); printf '{"accept": true, "modified_query": "%s LIMIT 10"}' "$q"`),
	}, testLogger())

	got, err := c.Run(context.Background(), "SELECT id FROM users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT id FROM users LIMIT 10" {
		t.Fatalf("expected rewritten query, got %q", got)
	}
}

func TestCommand_PatternNoMatchSkipsCommand(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{
		Pattern: "(?i)\\bpayments\\b",
		Command: script(t, `exit 1`),
	}, testLogger())

	got, err := c.Run(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("expected query unchanged, got %q", got)
	}
}

func TestCommand_NonZeroExit(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{Command: script(t, `echo boom >&2; exit 3`)}, testLogger())

	_, err := c.Run(context.Background(), "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "hook failed") {
		t.Fatalf("expected hook failure, got %v", err)
	}
}

func TestCommand_BadJSON(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{Command: script(t, `cat >/dev/null; echo 'not json'`)}, testLogger())

	_, err := c.Run(context.Background(), "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "unparseable response") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCommand_ContextDeadline(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{Command: script(t, `sleep 5`)}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Run(ctx, "SELECT 1")
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("hook was not killed on deadline")
	}
}

func TestNewCommand_Defaults(t *testing.T) {
	t.Parallel()
	c := NewCommand(Config{Command: "/bin/true", TimeoutSeconds: 3}, testLogger())
	if c.Name() != "/bin/true" {
		t.Fatalf("expected command as name, got %q", c.Name())
	}
	if c.Timeout() != 3*time.Second {
		t.Fatalf("expected 3s, got %s", c.Timeout())
	}
}

func TestNewCommand_Panics(t *testing.T) {
	t.Parallel()
	cases := map[string]Config{
		"no command":    {Name: "audit"},
		"bad pattern":   {Command: "/bin/true", Pattern: "("},
		"negative time": {Command: "/bin/true", TimeoutSeconds: -1},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			NewCommand(cfg, testLogger())
		})
	}
}
