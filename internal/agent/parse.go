package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GeneratedQuery is the backend's structured reply. SQL is untrusted and is
// only ever executed through query_data.
type GeneratedQuery struct {
	SQL         string
	Explanation string
	Error       string // set when the backend reported a failure instead of SQL
	Details     string
	HasSQL      bool // an "sql" field was present
}

type generatedQueryWire struct {
	SQL         *string         `json:"sql"`
	Explanation string          `json:"explanation"`
	Error       string          `json:"error"`
	Details     json.RawMessage `json:"details"`
}

func (w generatedQueryWire) query() GeneratedQuery {
	q := GeneratedQuery{
		Explanation: w.Explanation,
		Error:       w.Error,
		Details:     detailsText(w.Details),
	}
	if w.SQL != nil {
		q.SQL = *w.SQL
		q.HasSQL = true
	}
	return q
}

// detailsText renders a "details" value; strings are unquoted, anything else
// is kept as JSON.
func detailsText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type parseOutcome int

const (
	parsed parseOutcome = iota
	tryNext
	fatal
)

// parseStrategy is one attempt at reading a reply.
type parseStrategy struct {
	name  string
	parse func(reply string) (GeneratedQuery, parseOutcome, error)
}

// parseStrategies run in order until one parses or fails fatally.
var parseStrategies = []parseStrategy{
	{name: "raw", parse: parseRaw},
	{name: "fenced", parse: parseFenced},
	{name: "embedded", parse: parseEmbedded},
}

var errNoJSON = errors.New("no JSON object found in reply")

// ParseReply reads a backend reply into a GeneratedQuery.
func ParseReply(reply string) (GeneratedQuery, error) {
	if strings.TrimSpace(reply) == "" {
		return GeneratedQuery{}, errors.New("empty reply")
	}
	var lastErr error
	for _, s := range parseStrategies {
		q, outcome, err := s.parse(reply)
		switch outcome {
		case parsed:
			return q, nil
		case fatal:
			return GeneratedQuery{}, fmt.Errorf("%s: %w", s.name, err)
		}
		lastErr = err
	}
	return GeneratedQuery{}, lastErr
}

func parseRaw(reply string) (GeneratedQuery, parseOutcome, error) {
	return decode(strings.TrimSpace(reply), tryNext)
}

// parseFenced strips a surrounding ``` or ```json fence.
func parseFenced(reply string) (GeneratedQuery, parseOutcome, error) {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return GeneratedQuery{}, tryNext, errors.New("reply is not fenced")
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(s[:nl]), "{") {
		s = s[nl+1:] // language tag
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	return decode(s, tryNext)
}

// parseEmbedded tries each balanced JSON object in the reply, in order, and
// takes the first one that decodes. Braces in surrounding prose are skipped.
func parseEmbedded(reply string) (GeneratedQuery, parseOutcome, error) {
	lastErr := errNoJSON
	for from := 0; from < len(reply); {
		i := strings.IndexByte(reply[from:], '{')
		if i < 0 {
			break
		}
		start := from + i
		if obj := balancedFrom(reply, start, '{', '}'); obj != "" {
			q, outcome, err := decode(obj, tryNext)
			if outcome != tryNext {
				return q, outcome, err
			}
			lastErr = err
		}
		from = start + 1
	}
	return GeneratedQuery{}, fatal, lastErr
}

// decode unmarshals s. Syntax errors yield onSyntax; a well-formed object
// with wrongly typed fields is always fatal.
func decode(s string, onSyntax parseOutcome) (GeneratedQuery, parseOutcome, error) {
	var w generatedQueryWire
	err := json.Unmarshal([]byte(s), &w)
	if err == nil {
		return w.query(), parsed, nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && strings.HasPrefix(s, "{") {
		return GeneratedQuery{}, fatal, fmt.Errorf("field %q has type %s", typeErr.Field, typeErr.Value)
	}
	return GeneratedQuery{}, onSyntax, err
}

// extractBalancedJSON returns the first balanced open/close span of s,
// ignoring delimiters inside JSON strings.
func extractBalancedJSON(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}
	return balancedFrom(s, start, open, close)
}

// balancedFrom returns the balanced span opening at s[start], or "" when it
// never closes.
func balancedFrom(s string, start int, open, close byte) string {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
