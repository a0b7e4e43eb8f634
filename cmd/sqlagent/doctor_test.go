package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlagent.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const unreachableConfig = `
connection:
  host: 127.0.0.1
  port: 1
  user: agent
  database: shop
query:
  default_timeout_seconds: 2
  list_tables_timeout_seconds: 2
`

// Note: Tests using t.Setenv() cannot use t.Parallel() in Go.

func TestDoctorMissingCredentials(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	path := writeYAML(t, "connection:\n  host: localhost\n")

	var buf bytes.Buffer
	if err := doctor(context.Background(), &buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "✓ Configuration loads") {
		t.Fatalf("expected config load check to pass:\n%s", output)
	}
	if !strings.Contains(output, "✗ Database settings are complete") {
		t.Fatalf("expected database settings check to fail:\n%s", output)
	}
	for _, name := range []string{"MYSQL_USER", "MYSQL_PASSWORD", "MYSQL_DATABASE"} {
		if !strings.Contains(output, name) {
			t.Fatalf("expected %s to be named in output:\n%s", name, output)
		}
	}
	if !strings.Contains(output, "Fix the issues above") {
		t.Fatalf("expected fix hint in output:\n%s", output)
	}
	if strings.Contains(output, "Agent Connection Snippets") {
		t.Fatalf("snippets should not be printed when checks fail:\n%s", output)
	}
}

func TestDoctorInvalidRegexAndMissingAPIKey(t *testing.T) {
	t.Setenv("MYSQL_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "")
	path := writeYAML(t, unreachableConfig+`
error_prompts:
  - pattern: "([unclosed"
    message: "never matches"
llm:
  provider: openrouter
`)

	var buf bytes.Buffer
	if err := doctor(context.Background(), &buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "✗ error_prompts[0] regex compiles") {
		t.Fatalf("expected regex failure:\n%s", output)
	}
	if strings.Contains(output, "All regex patterns compile") {
		t.Fatalf("regex summary should not pass:\n%s", output)
	}
	if !strings.Contains(output, "✗ Language model is configured") {
		t.Fatalf("expected missing API key failure:\n%s", output)
	}
	if strings.Contains(output, "Database is reachable") {
		t.Fatalf("connectivity must not be checked when validation fails:\n%s", output)
	}
}

func TestDoctorUnreachableDatabase(t *testing.T) {
	t.Setenv("MYSQL_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	path := writeYAML(t, unreachableConfig)

	var buf bytes.Buffer
	if err := doctor(context.Background(), &buf, false, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "✓ Database settings are complete (mysql agent@127.0.0.1:1/shop)") {
		t.Fatalf("expected database settings to pass:\n%s", output)
	}
	if !strings.Contains(output, "✓ Language model is configured (openrouter, anthropic/claude-3-opus-20240229)") {
		t.Fatalf("expected default model in output:\n%s", output)
	}
	if !strings.Contains(output, "✓ Non-SELECT statements containing DROP, DELETE, TRUNCATE, ALTER are denied") {
		t.Fatalf("expected default denylist in output:\n%s", output)
	}
	if !strings.Contains(output, "✗ Database is reachable") {
		t.Fatalf("expected unreachable database:\n%s", output)
	}
}

func TestPrintAgentSnippets(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printAgentSnippets(&buf, false, &sqlmcp.ServerConfig{})
	if !strings.Contains(buf.String(), `"args": ["serve"]`) {
		t.Fatalf("expected stdio snippet:\n%s", buf.String())
	}

	buf.Reset()
	cfg := &sqlmcp.ServerConfig{Server: sqlmcp.ServerSettings{MCPAddr: "0.0.0.0:9090"}}
	printAgentSnippets(&buf, false, cfg)
	if !strings.Contains(buf.String(), "claude mcp add --transport http sqlagent http://localhost:9090/mcp") {
		t.Fatalf("expected HTTP snippet:\n%s", buf.String())
	}
}

func TestPrintCheck(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printCheck(&buf, false, true, "ok")
	printCheck(&buf, false, false, "bad")
	if buf.String() != "  ✓ ok\n  ✗ bad\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
