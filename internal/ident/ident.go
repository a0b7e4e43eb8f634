// Package ident normalizes MySQL identifiers before they are interpolated into SQL text.
//
// Escape is a cosmetic denylist guard, not an injection-proof parser. It is only
// applied to table names supplied by tool callers; names enumerated from the
// database itself go through Quote.
package ident

import (
	"strings"
	"unicode"
)

// reserved holds MySQL keywords that commonly collide with table names.
var reserved = map[string]struct{}{
	"rank":    {},
	"group":   {},
	"order":   {},
	"table":   {},
	"index":   {},
	"key":     {},
	"primary": {},
	"default": {},
	"create":  {},
	"select":  {},
	"insert":  {},
	"update":  {},
	"delete":  {},
	"where":   {},
	"from":    {},
	"join":    {},
}

// Escape strips every rune that is not a letter, digit or underscore and wraps
// the result in backticks when it is a reserved word. It never fails: an empty
// return value means nothing usable was left and callers must treat it as an error.
func Escape(name string) string {
	stripped := Strip(name)
	if IsReserved(stripped) {
		return "`" + stripped + "`"
	}
	return stripped
}

// Strip removes every rune that is not a letter, digit or underscore.
func Strip(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

// IsReserved reports whether name (case-insensitive) is in the reserved set.
func IsReserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}

// Quote wraps a trusted identifier in backticks, doubling embedded backticks.
func Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
