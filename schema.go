package sqlmcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rickchristie/sqlagent-mcp/internal/dialect"
)

const (
	noTablesText      = "No tables found in the database"
	toolErrorPrefix   = "Error: "
	primaryKeySuffix  = " PRIMARY KEY"
	tableHeaderPrefix = "TABLE: "
)

// Schema enumerates every table and its columns on a single connection.
// Table order is the database's enumeration order. Nothing is cached.
func (p *SQLMcp) Schema(ctx context.Context) ([]TableInfo, error) {
	release, err := p.acquireSlot(ctx, "get_database_schema")
	if err != nil {
		return nil, err
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.SchemaTimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := p.db.Conn(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	tables, err := p.dialect.Introspect(queryCtx, conn)
	if err != nil {
		return nil, err
	}
	out := make([]TableInfo, len(tables))
	for i, t := range tables {
		out[i] = TableInfo{Name: t.Name, Columns: toColumnInfos(t.Columns)}
	}
	return out, nil
}

// GetDatabaseSchema returns the schema document as text.
func (p *SQLMcp) GetDatabaseSchema(ctx context.Context) ToolResult {
	startTime := time.Now()
	tables, err := p.Schema(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("get_database_schema failed")
		return errorResult(toolErrorPrefix + err.Error())
	}
	p.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("get_database_schema executed")
	return textResult(FormatSchema(tables))
}

// FormatSchema renders tables in the canonical text form:
//
//	TABLE: users
//	  - id (int) PRIMARY KEY
//	  - name (varchar(255))
//
// with a blank line between tables. An empty slice yields the no-tables
// sentinel.
func FormatSchema(tables []TableInfo) string {
	if len(tables) == 0 {
		return noTablesText
	}
	blocks := make([]string, len(tables))
	for i, t := range tables {
		var sb strings.Builder
		sb.WriteString(tableHeaderPrefix)
		sb.WriteString(t.Name)
		for _, c := range t.Columns {
			sb.WriteString("\n  - ")
			sb.WriteString(c.Field)
			sb.WriteString(" (")
			sb.WriteString(c.Type)
			sb.WriteString(")")
			if c.KeyRole() == KeyPrimary {
				sb.WriteString(primaryKeySuffix)
			}
		}
		blocks[i] = sb.String()
	}
	return strings.Join(blocks, "\n\n")
}

func toColumnInfos(columns []dialect.Column) []ColumnInfo {
	out := make([]ColumnInfo, len(columns))
	for i, c := range columns {
		out[i] = ColumnInfo{
			Field:    c.Field,
			Type:     c.Type,
			Nullable: c.Nullable,
			Key:      c.Key,
			Default:  c.Default,
			Extra:    c.Extra,
		}
	}
	return out
}
