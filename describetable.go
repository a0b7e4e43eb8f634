package sqlmcp

import (
	"context"
	"fmt"
	"time"
)

var describeHeaders = []string{"Field", "Type", "Null", "Key", "Default", "Extra"}

// DescribeTable returns a pipe table of the columns of table. The name comes
// from the caller and is escaped by the dialect before it reaches SQL text.
func (p *SQLMcp) DescribeTable(ctx context.Context, table string) ToolResult {
	startTime := time.Now()
	columns, err := p.describeTable(ctx, table)
	if err != nil {
		p.logger.Error().Err(err).Str("table", table).Msg("describe_table failed")
		return errorResult(toolErrorPrefix + err.Error())
	}

	p.logger.Info().
		Str("table", table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(columns)).
		Msg("describe_table executed")

	if len(columns) == 0 {
		return textResult(fmt.Sprintf("No columns found for table %s", table))
	}

	rows := make([][]*string, len(columns))
	for i, c := range columns {
		null := "NO"
		if c.Nullable {
			null = "YES"
		}
		field, typ, key, extra := c.Field, c.Type, c.Key, c.Extra
		rows[i] = []*string{&field, &typ, &null, &key, c.Default, &extra}
	}
	return textResult(formatTable(describeHeaders, rows))
}

func (p *SQLMcp) describeTable(ctx context.Context, table string) ([]ColumnInfo, error) {
	release, err := p.acquireSlot(ctx, "describe_table")
	if err != nil {
		return nil, err
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.DescribeTableTimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := p.db.Conn(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	columns, err := p.dialect.DescribeTable(queryCtx, conn, table)
	if err != nil {
		return nil, err
	}
	return toColumnInfos(columns), nil
}
