package timeout

import (
	"fmt"
	"regexp"
	"time"
)

// Rule maps a SQL pattern to a timeout.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	DefaultTimeout time.Duration
	Rules          []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves query_data timeouts by SQL pattern.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager compiles the rules. Returns an error on invalid regex patterns
// or non-positive durations.
func NewManager(config Config) (*Manager, error) {
	if config.DefaultTimeout <= 0 {
		return nil, fmt.Errorf("timeout: default timeout must be > 0, got %s", config.DefaultTimeout)
	}
	compiled := make([]compiledRule, 0, len(config.Rules))
	for _, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timeout: invalid regex pattern %q: %v", r.Pattern, err)
		}
		if r.Timeout <= 0 {
			return nil, fmt.Errorf("timeout: rule %q has non-positive timeout %s", r.Pattern, r.Timeout)
		}
		compiled = append(compiled, compiledRule{pattern: re, timeout: r.Timeout})
	}
	return &Manager{rules: compiled, defaultTimeout: config.DefaultTimeout}, nil
}

// Resolve returns the timeout for sql and the pattern that selected it.
// First matching rule wins; the pattern is empty when the default applies.
func (m *Manager) Resolve(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}
