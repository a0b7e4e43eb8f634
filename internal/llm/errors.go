package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies backend failures.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeResponse  ErrorType = "response"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a classified backend failure.
type Error struct {
	Type       ErrorType
	Message    string
	Cause      error
	StatusCode int    // HTTP status, 0 when unknown
	Model      string // model name if known
}

func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ClassifyError turns err into an *Error. An *Error anywhere in the chain is
// returned as is.
func ClassifyError(err error, model string) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	statusCode := statusCodeOf(err)
	lower := strings.ToLower(err.Error())
	classified := func(t ErrorType, msg string) *Error {
		return &Error{Type: t, Message: msg, Cause: err, StatusCode: statusCode, Model: model}
	}

	// Network failures carry addresses whose digits look like status codes.
	if statusCode == 0 && (strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host")) {
		return classified(ErrorTypeEndpoint, "connection failed")
	}

	var antErr *anthropic.APIError
	if errors.As(err, &antErr) {
		switch string(antErr.Type) {
		case "authentication_error", "permission_error":
			return classified(ErrorTypeAuth, "authentication failed")
		case "not_found_error":
			return classified(ErrorTypeModel, "model not found")
		case "rate_limit_error":
			return classified(ErrorTypeRateLimit, "rate limited")
		case "api_error", "overloaded_error":
			return classified(ErrorTypeEndpoint, "server error")
		}
	}

	switch {
	case statusCode == 401 || statusCode == 403 ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "authentication_error") ||
		strings.Contains(lower, "permission_error"):
		return classified(ErrorTypeAuth, "authentication failed")
	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return classified(ErrorTypeModel, "model not found")
	case statusCode == 404 || strings.Contains(lower, "not_found_error"):
		return classified(ErrorTypeEndpoint, "endpoint not found")
	case statusCode == 429 || strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit"):
		return classified(ErrorTypeRateLimit, "rate limited")
	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "context canceled"):
		return classified(ErrorTypeEndpoint, "request timeout")
	case statusCode >= 500 || strings.Contains(lower, "overloaded_error"):
		return classified(ErrorTypeEndpoint, "server error")
	default:
		return classified(ErrorTypeUnknown, "request failed")
	}
}

// statusCodeRe matches a status code only where a client library labels it.
var statusCodeRe = regexp.MustCompile(`(?i)(?:status code|status|http)[:= ]+([1-5][0-9]{2})\b`)

// statusCodeOf returns the HTTP status carried by err. Typed OpenAI and
// Anthropic errors are read directly; otherwise only a labelled code counts.
func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode
	}
	var antReqErr *anthropic.RequestError
	if errors.As(err, &antReqErr) && antReqErr.StatusCode > 0 {
		return antReqErr.StatusCode
	}
	if m := statusCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}
