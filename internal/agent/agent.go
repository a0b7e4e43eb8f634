// Package agent turns natural-language questions into SQL with a language
// model and runs the result through the database tools.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
	"github.com/rickchristie/sqlagent-mcp/internal/llm"
)

const noExplanation = "No explanation provided"

// ToolCaller invokes one database tool. A returned error means the tool
// server could not be reached; tool-level failures arrive as error results.
type ToolCaller interface {
	Call(ctx context.Context, inv sqlmcp.Invocation) (sqlmcp.ToolResult, error)
}

// Answer is the outcome of one question.
type Answer struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Result      string `json:"result"`
	// IsError is set when the tool reported the result as an error, for
	// example a safety denial or a database error.
	IsError bool `json:"-"`
}

// Agent answers questions within one Session. Questions must be serialized;
// give each concurrent caller its own Agent.
type Agent struct {
	backend llm.Backend
	tools   ToolCaller
	session *Session
	logger  zerolog.Logger
}

// New returns an agent that records its conversation in session.
func New(backend llm.Backend, tools ToolCaller, session *Session, logger zerolog.Logger) *Agent {
	return &Agent{
		backend: backend,
		tools:   tools,
		session: session,
		logger:  logger.With().Str("session_id", session.ID().String()).Logger(),
	}
}

// Session returns the conversation the agent appends to.
func (a *Agent) Session() *Session {
	return a.session
}

// Answer fetches the schema, asks the backend for a statement and executes it
// with query_data. A failed schema fetch degrades to an empty schema. Backend
// and parse failures return an *Error without executing anything.
func (a *Agent) Answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	ctx = llm.WithSessionID(ctx, a.session.ID())

	schema := a.schema(ctx)

	a.session.Append(llm.RoleUser, userPrompt(schema, question))
	reply, err := a.backend.Complete(ctx, a.session.Messages())
	if err != nil {
		a.logger.Error().Err(err).Str("model", a.backend.Model()).Msg("backend call failed")
		return nil, backendError(err)
	}
	a.session.Append(llm.RoleAssistant, reply)

	q, err := ParseReply(reply)
	if err != nil {
		a.logger.Warn().Err(err).Int("reply_length", len(reply)).Msg("unparseable backend reply")
		return nil, &Error{Kind: KindResponse, Message: "Received invalid response format", Details: err.Error(), Cause: err}
	}
	if q.Error != "" {
		return nil, &Error{Kind: KindModel, Message: q.Error, Details: q.Details}
	}
	sql := strings.TrimSpace(q.SQL)
	if !q.HasSQL || sql == "" {
		return nil, &Error{Kind: KindNoSQL, Message: "No SQL query was generated"}
	}
	explanation := strings.TrimSpace(q.Explanation)
	if explanation == "" {
		explanation = noExplanation
	}

	res, err := a.tools.Call(ctx, sqlmcp.QueryDataCall{SQL: sql})
	if err != nil {
		a.logger.Error().Err(err).Msg("query_data call failed")
		return nil, &Error{Kind: KindTool, Message: "query_data call failed", Details: err.Error(), Cause: err}
	}

	a.logger.Info().
		Int("sql_length", len(sql)).
		Bool("is_error", res.IsError).
		Int("history", a.session.Len()).
		Dur("duration", time.Since(start)).
		Msg("question answered")

	return &Answer{SQL: sql, Explanation: explanation, Result: res.Text, IsError: res.IsError}, nil
}

// Run executes a direct command without involving the backend.
func (a *Agent) Run(ctx context.Context, inv sqlmcp.Invocation) (sqlmcp.ToolResult, error) {
	return a.tools.Call(ctx, inv)
}

func (a *Agent) schema(ctx context.Context) string {
	res, err := a.tools.Call(ctx, sqlmcp.GetDatabaseSchemaCall{})
	if err != nil {
		a.logger.Warn().Err(err).Msg("schema fetch failed, continuing without schema")
		return ""
	}
	if res.IsError {
		a.logger.Warn().Str("result", res.Text).Msg("schema fetch returned an error, continuing without schema")
		return ""
	}
	return res.Text
}
