// Package protection decides whether a generated SQL statement may be executed.
//
// The check is a keyword heuristic, not a grammar: it does not tokenize, so it
// rejects harmless statements that merely contain a keyword (an UPDATE touching
// a "dropped_at" column) and accepts anything that starts with SELECT, including
// multi-statement or comment-obfuscated payloads. Callers rely on this exact
// behavior; a parser-based allowlist would be a behavior change.
package protection

import "strings"

// DeniedMessage is the fixed text returned to tool callers on denial.
const DeniedMessage = "Error: Potentially dangerous SQL operation detected"

// DefaultKeywords are always denied outside SELECT statements.
var DefaultKeywords = []string{"DROP", "DELETE", "TRUNCATE", "ALTER"}

// Config is the checker's own config type.
type Config struct {
	// ExtraKeywords are denied in addition to DefaultKeywords.
	ExtraKeywords []string
}

// Decision is the outcome of classifying a statement.
type Decision struct {
	Allowed bool
	Keyword string // denylisted keyword that triggered a denial
}

// Checker classifies SQL statements against the keyword denylist.
type Checker struct {
	keywords []string
}

// NewChecker creates a new Checker. Empty extra keywords are ignored.
func NewChecker(config Config) *Checker {
	keywords := append([]string{}, DefaultKeywords...)
	for _, kw := range config.ExtraKeywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Checker{keywords: keywords}
}

// Classify normalizes a comparison copy of sql and applies the gate.
// The SQL handed to the database is never modified.
func (c *Checker) Classify(sql string) Decision {
	normalized := strings.ToUpper(strings.TrimSpace(sql))
	if strings.HasPrefix(normalized, "SELECT") {
		return Decision{Allowed: true}
	}
	for _, kw := range c.keywords {
		if strings.Contains(normalized, kw) {
			return Decision{Allowed: false, Keyword: kw}
		}
	}
	return Decision{Allowed: true}
}

// Keywords returns a copy of the active denylist.
func (c *Checker) Keywords() []string {
	return append([]string{}, c.keywords...)
}
