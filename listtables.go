package sqlmcp

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ListTables returns newline-joined table names in enumeration order.
// It does not go through the hook/protection/sanitization pipeline.
func (p *SQLMcp) ListTables(ctx context.Context) ToolResult {
	startTime := time.Now()
	tables, err := p.listTables(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("list_tables failed")
		return errorResult(toolErrorPrefix + err.Error())
	}

	p.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("list_tables executed")

	if len(tables) == 0 {
		return textResult(noTablesText)
	}
	return textResult(strings.Join(tables, "\n"))
}

func (p *SQLMcp) listTables(ctx context.Context) ([]string, error) {
	// 1. Acquire semaphore
	release, err := p.acquireSlot(ctx, "list_tables")
	if err != nil {
		return nil, err
	}
	defer release()

	// 2. Apply configurable timeout
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.ListTablesTimeoutSeconds)*time.Second)
	defer cancel()

	// 3. Scoped connection
	conn, err := p.db.Conn(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return p.dialect.ListTables(queryCtx, conn)
}
