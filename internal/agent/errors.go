package agent

import (
	"errors"

	"github.com/rickchristie/sqlagent-mcp/internal/llm"
)

// ErrorKind says which step of a question failed.
type ErrorKind string

const (
	// KindBackend: the language-model call failed.
	KindBackend ErrorKind = "backend"
	// KindResponse: the backend answered, but not with a usable JSON object.
	KindResponse ErrorKind = "response"
	// KindModel: the backend's reply carried an "error" field.
	KindModel ErrorKind = "model"
	// KindNoSQL: the reply had no "sql" field or it was blank.
	KindNoSQL ErrorKind = "no_sql"
	// KindTool: the tool server could not be reached.
	KindTool ErrorKind = "tool"
)

// Error is a failed question. Nothing was executed against the database
// unless Kind is KindTool.
type Error struct {
	Kind    ErrorKind
	Message string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsBackendFailure reports whether err came from the language model rather
// than from the tool server.
func IsBackendFailure(err error) bool {
	var agentErr *Error
	return errors.As(err, &agentErr) && agentErr.Kind != KindTool
}

func backendError(err error) *Error {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) && llmErr.Type == llm.ErrorTypeResponse {
		return &Error{Kind: KindResponse, Message: "Failed to parse API response", Details: err.Error(), Cause: err}
	}
	return &Error{Kind: KindBackend, Message: "Failed to connect to language model API", Details: err.Error(), Cause: err}
}
