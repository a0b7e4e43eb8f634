// Package errprompt appends configured guidance to database error text so the
// language model can correct its next query.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule pairs an error pattern with a guidance message.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher checks error messages against patterns, top to bottom.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher creates a new Matcher. Returns an error on invalid regex patterns.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Annotate returns errMsg followed by every matching guidance message, and the
// patterns that matched. errMsg is returned unchanged when nothing matches.
func (m *Matcher) Annotate(errMsg string) (string, []string) {
	var messages, patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			messages = append(messages, rule.message)
			patterns = append(patterns, rule.pattern.String())
		}
	}
	if len(messages) == 0 {
		return errMsg, nil
	}
	return errMsg + "\n\n" + strings.Join(messages, "\n"), patterns
}
