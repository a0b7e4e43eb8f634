package sqlmcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Tool names exposed by the registry.
const (
	ToolGetDatabaseSchema = "get_database_schema"
	ToolListTables        = "list_tables"
	ToolDescribeTable     = "describe_table"
	ToolQueryData         = "query_data"
)

var (
	// ErrUnknownTool is returned by ParseInvocation for names outside the tool set.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when the argument set does not match the
	// tool's declared parameters exactly.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Invocation is one tool call. The set of implementations is closed:
// GetDatabaseSchemaCall, ListTablesCall, DescribeTableCall and QueryDataCall.
type Invocation interface {
	// Tool returns the registry name of the tool.
	Tool() string
	// Arguments returns the call's argument mapping.
	Arguments() map[string]any
	invocation()
}

// GetDatabaseSchemaCall requests the full schema document.
type GetDatabaseSchemaCall struct{}

// ListTablesCall requests the table names.
type ListTablesCall struct{}

// DescribeTableCall requests the columns of one table.
type DescribeTableCall struct {
	Table string
}

// QueryDataCall runs one statement through the safety gate and executor.
type QueryDataCall struct {
	SQL string
}

func (GetDatabaseSchemaCall) Tool() string { return ToolGetDatabaseSchema }
func (ListTablesCall) Tool() string        { return ToolListTables }
func (DescribeTableCall) Tool() string     { return ToolDescribeTable }
func (QueryDataCall) Tool() string         { return ToolQueryData }

func (GetDatabaseSchemaCall) Arguments() map[string]any { return map[string]any{} }
func (ListTablesCall) Arguments() map[string]any        { return map[string]any{} }
func (c DescribeTableCall) Arguments() map[string]any   { return map[string]any{"table": c.Table} }
func (c QueryDataCall) Arguments() map[string]any       { return map[string]any{"sql": c.SQL} }

func (GetDatabaseSchemaCall) invocation() {}
func (ListTablesCall) invocation()        {}
func (DescribeTableCall) invocation()     {}
func (QueryDataCall) invocation()         {}

// ToolNames returns the fixed tool set in registration order.
func ToolNames() []string {
	return []string{ToolGetDatabaseSchema, ToolListTables, ToolDescribeTable, ToolQueryData}
}

// ParseInvocation builds the typed invocation for name. args must contain
// exactly the tool's declared parameters.
func ParseInvocation(name string, args map[string]string) (Invocation, error) {
	switch name {
	case ToolGetDatabaseSchema:
		if err := expectArgs(name, args); err != nil {
			return nil, err
		}
		return GetDatabaseSchemaCall{}, nil
	case ToolListTables:
		if err := expectArgs(name, args); err != nil {
			return nil, err
		}
		return ListTablesCall{}, nil
	case ToolDescribeTable:
		if err := expectArgs(name, args, "table"); err != nil {
			return nil, err
		}
		return DescribeTableCall{Table: args["table"]}, nil
	case ToolQueryData:
		if err := expectArgs(name, args, "sql"); err != nil {
			return nil, err
		}
		return QueryDataCall{SQL: args["sql"]}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func expectArgs(tool string, args map[string]string, required ...string) error {
	var missing, extra []string
	for _, r := range required {
		if _, ok := args[r]; !ok {
			missing = append(missing, r)
		}
	}
	for k := range args {
		found := false
		for _, r := range required {
			if k == r {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(extra, ", "))
	}
	return fmt.Errorf("%w for %s: %s", ErrInvalidArguments, tool, strings.Join(parts, "; "))
}

// Invoke dispatches inv to the matching tool. Each call is independent.
func (p *SQLMcp) Invoke(ctx context.Context, inv Invocation) ToolResult {
	switch inv := inv.(type) {
	case GetDatabaseSchemaCall:
		return p.GetDatabaseSchema(ctx)
	case ListTablesCall:
		return p.ListTables(ctx)
	case DescribeTableCall:
		return p.DescribeTable(ctx, inv.Table)
	case QueryDataCall:
		return p.QueryData(ctx, inv.SQL)
	default:
		return errorResult(fmt.Sprintf("Error: unsupported invocation %T", inv))
	}
}
