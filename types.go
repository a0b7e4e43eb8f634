package sqlmcp

// ToolResult is the text outcome of one tool call. Exactly one of success or
// error text is carried; IsError tags which.
type ToolResult struct {
	Text    string
	IsError bool
}

func textResult(text string) ToolResult {
	return ToolResult{Text: text}
}

func errorResult(text string) ToolResult {
	return ToolResult{Text: text, IsError: true}
}

// KeyRole is the key participation of a column.
type KeyRole int

const (
	KeyNone KeyRole = iota
	KeyPrimary
)

// ColumnInfo describes a single column at fetch time.
type ColumnInfo struct {
	Field    string
	Type     string
	Nullable bool
	Key      string  // raw engine marker, e.g. "PRI", "UNI", "MUL"
	Default  *string // nil when there is no default
	Extra    string
}

// KeyRole reports whether the column is part of the primary key.
func (c ColumnInfo) KeyRole() KeyRole {
	if c.Key == "PRI" {
		return KeyPrimary
	}
	return KeyNone
}

// TableInfo is one table of a schema document, columns in physical order.
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}
