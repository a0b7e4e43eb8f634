package timeout

import (
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: `(?i)information_schema`, Timeout: 5 * time.Second},
			{Pattern: `(?i)\bJOIN\b`, Timeout: 60 * time.Second},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestResolveFirstRule(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	got, pattern := m.Resolve("SELECT * FROM information_schema.tables")
	if got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}
	if pattern != `(?i)information_schema` {
		t.Errorf("unexpected pattern %q", pattern)
	}
}

func TestResolveStopsOnFirstMatch(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	got, _ := m.Resolve("SELECT * FROM information_schema.columns c JOIN x ON 1=1")
	if got != 5*time.Second {
		t.Errorf("expected 5s (first match wins), got %v", got)
	}
}

func TestResolveDefault(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	got, pattern := m.Resolve("SELECT 1")
	if got != 30*time.Second {
		t.Errorf("expected 30s, got %v", got)
	}
	if pattern != "" {
		t.Errorf("expected empty pattern, got %q", pattern)
	}
}

func TestNewManagerErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"invalid regex", Config{DefaultTimeout: time.Second, Rules: []Rule{{Pattern: `[invalid`, Timeout: time.Second}}}, "invalid regex pattern"},
		{"zero default", Config{}, "default timeout must be > 0"},
		{"zero rule timeout", Config{DefaultTimeout: time.Second, Rules: []Rule{{Pattern: `x`}}}, "non-positive timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewManager(tt.config)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
