package sanitize

import (
	"fmt"
	"regexp"
)

// Rule is the sanitizer's own rule type.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer masks result cell text with regex replacements.
type Sanitizer struct {
	rules []compiledRule
}

// NewSanitizer creates a new Sanitizer. Returns an error on invalid regex patterns.
func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules returns true if the sanitizer has any rules configured.
func (s *Sanitizer) HasRules() bool {
	return len(s.rules) > 0
}

// Cell applies every rule, in order, to a single value.
func (s *Sanitizer) Cell(value string) string {
	for _, rule := range s.rules {
		value = rule.pattern.ReplaceAllString(value, rule.replacement)
	}
	return value
}

// Rows sanitizes row cells in place. NULL cells (nil) are left alone.
func (s *Sanitizer) Rows(rows [][]*string) {
	if !s.HasRules() {
		return
	}
	for _, row := range rows {
		for i, cell := range row {
			if cell == nil {
				continue
			}
			v := s.Cell(*cell)
			row[i] = &v
		}
	}
}
