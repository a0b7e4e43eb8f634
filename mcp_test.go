package sqlmcp

import (
	"context"
	"sort"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

func TestRequestLength_WithArguments(t *testing.T) {
	t.Parallel()
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "query_data",
			Arguments: map[string]any{"sql": "SELECT 1"},
		},
	}
	length := requestLength(req)
	// {"sql":"SELECT 1"} = 18 bytes
	if length != 18 {
		t.Fatalf("expected request length 18, got %d", length)
	}
}

func TestRequestLength_NoArguments(t *testing.T) {
	t.Parallel()
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "list_tables",
		},
	}
	if length := requestLength(req); length != 0 {
		t.Fatalf("expected request length 0 for no arguments, got %d", length)
	}
}

func TestResultLength(t *testing.T) {
	t.Parallel()
	if length := resultLength(mcp.NewToolResultText("id\n--\n1")); length != 7 {
		t.Fatalf("expected result length 7, got %d", length)
	}
	if length := resultLength(mcp.NewToolResultError("something failed")); length != 16 {
		t.Fatalf("expected result length 16, got %d", length)
	}
	if length := resultLength(nil); length != 0 {
		t.Fatalf("expected result length 0 for nil, got %d", length)
	}
}

func TestStringArguments(t *testing.T) {
	t.Parallel()
	args, err := stringArguments(map[string]any{"table": "users"})
	if err != nil || args["table"] != "users" {
		t.Fatalf("unexpected %v, %v", args, err)
	}
	if _, err := stringArguments(map[string]any{"table": 42}); err == nil {
		t.Fatal("expected error for non-string argument")
	}
}

func newInProcessClient(t *testing.T, p *SQLMcp) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(NewMCPServer(p, "sqlagent-test", "1.0.0"))
	if err != nil {
		t.Fatalf("NewInProcessClient() error = %v", err)
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "sqlagent-test-client", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := c.CallTool(context.Background(), req)
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	return result
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestMCP_ListToolsAdvertisesFixedSet(t *testing.T) {
	t.Parallel()
	p, _ := newTestInstance(t, defaultConfig())
	c := newInProcessClient(t, p)

	tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	var names []string
	required := map[string][]string{}
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
		required[tool.Name] = tool.InputSchema.Required
	}
	sort.Strings(names)
	want := []string{"describe_table", "get_database_schema", "list_tables", "query_data"}
	if len(names) != len(want) {
		t.Fatalf("expected tools %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected tools %v, got %v", want, names)
		}
	}
	if len(required["describe_table"]) != 1 || required["describe_table"][0] != "table" {
		t.Fatalf("describe_table must require table, got %v", required["describe_table"])
	}
	if len(required["query_data"]) != 1 || required["query_data"][0] != "sql" {
		t.Fatalf("query_data must require sql, got %v", required["query_data"])
	}
}

func TestMCP_CallTools(t *testing.T) {
	t.Parallel()
	p, mock := newTestInstance(t, defaultConfig())
	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_shop"}).AddRow("users"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT * FROM users;").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ann"))
	mock.ExpectRollback()
	c := newInProcessClient(t, p)

	if got := resultText(callTool(t, c, "list_tables", nil)); got != "users" {
		t.Fatalf("unexpected list_tables text %q", got)
	}
	if got := resultText(callTool(t, c, "query_data", map[string]any{"sql": "SELECT * FROM users;"})); got != "id | name\n---------\n1 | ann" {
		t.Fatalf("unexpected query_data text %q", got)
	}

	denied := callTool(t, c, "query_data", map[string]any{"sql": "DELETE FROM users;"})
	if !denied.IsError || resultText(denied) != "Error: Potentially dangerous SQL operation detected" {
		t.Fatalf("unexpected denial %+v", denied)
	}

	bad := callTool(t, c, "describe_table", map[string]any{"table": "users", "schema": "x"})
	if !bad.IsError {
		t.Fatalf("expected argument error, got %q", resultText(bad))
	}
}
