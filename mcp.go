package sqlmcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server advertising the four tools of p.
func NewMCPServer(p *SQLMcp, name, version string, opts ...server.ServerOption) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		p.logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("agent connected (MCP initialize)")
	})
	opts = append([]server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithHooks(hooks),
	}, opts...)
	mcpServer := server.NewMCPServer(name, version, opts...)
	RegisterMCPTools(mcpServer, p)
	return mcpServer
}

// RegisterMCPTools registers get_database_schema, list_tables, describe_table
// and query_data as MCP tools on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, p *SQLMcp) {
	mcpServer.AddTool(mcp.NewTool(ToolGetDatabaseSchema,
		mcp.WithDescription("Get the complete schema of the database with tables and their columns."),
		mcp.WithReadOnlyHintAnnotation(true),
	), p.loggedToolHandler(ToolGetDatabaseSchema, p.invokeHandler(ToolGetDatabaseSchema)))

	mcpServer.AddTool(mcp.NewTool(ToolListTables,
		mcp.WithDescription("List all tables in the database."),
		mcp.WithReadOnlyHintAnnotation(true),
	), p.loggedToolHandler(ToolListTables, p.invokeHandler(ToolListTables)))

	mcpServer.AddTool(mcp.NewTool(ToolDescribeTable,
		mcp.WithDescription("Describe the structure of a table."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	), p.loggedToolHandler(ToolDescribeTable, p.invokeHandler(ToolDescribeTable)))

	mcpServer.AddTool(mcp.NewTool(ToolQueryData,
		mcp.WithDescription("Execute a SQL statement. Statements that are not SELECT and contain DROP, DELETE, TRUNCATE or ALTER are refused."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
	), p.loggedToolHandler(ToolQueryData, p.invokeHandler(ToolQueryData)))
}

// invokeHandler parses the request into an Invocation and runs it. Argument
// errors are reported as tool errors, not protocol errors.
func (p *SQLMcp) invokeHandler(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := stringArguments(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}
		inv, err := ParseInvocation(tool, args)
		if err != nil {
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}
		return toCallToolResult(p.Invoke(ctx, inv)), nil
	}
}

func stringArguments(args map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a string, got %T", k, v)
		}
		out[k] = s
	}
	return out, nil
}

func toCallToolResult(r ToolResult) *mcp.CallToolResult {
	if r.IsError {
		return mcp.NewToolResultError(r.Text)
	}
	return mcp.NewToolResultText(r.Text)
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (p *SQLMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Bool("is_error", result != nil && result.IsError).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
