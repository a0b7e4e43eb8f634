package agent

import (
	"strings"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
)

// ParseCommand recognizes the direct commands that bypass the language
// model: "list tables" / "show tables" and "describe <table>" / "desc <table>".
func ParseCommand(input string) (sqlmcp.Invocation, bool) {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)

	switch lower {
	case "list tables", "show tables":
		return sqlmcp.ListTablesCall{}, true
	}
	if strings.HasPrefix(lower, "describe ") || strings.HasPrefix(lower, "desc ") {
		parts := strings.Fields(trimmed)
		if len(parts) == 2 {
			return sqlmcp.DescribeTableCall{Table: parts[1]}, true
		}
	}
	return nil, false
}
