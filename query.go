package sqlmcp

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rickchristie/sqlagent-mcp/internal/dialect"
	"github.com/rickchristie/sqlagent-mcp/internal/protection"
)

const (
	noResultsText      = "Query returned no results"
	rowsAffectedFormat = "Query executed successfully. Rows affected: %d"
	queryErrorPrefix   = "Error executing query: "
	truncatedSuffix    = "...[truncated] Result is too long! Add limits in your query!"
	cellSeparator      = " | "
	nullText           = "NULL"
)

// QueryData runs one generated statement through the full pipeline:
// length check, BeforeQuery hooks, the safety gate, execution and formatting.
// Every failure is returned as error text, never as a Go error.
func (p *SQLMcp) QueryData(ctx context.Context, sql string) ToolResult {
	startTime := time.Now()

	// 1. Acquire semaphore
	release, err := p.acquireSlot(ctx, "query_data")
	if err != nil {
		return p.handleError("Error: ", err)
	}
	defer release()

	// 2. Check SQL length before any other processing
	if len(sql) > p.config.Query.MaxSQLLength {
		return p.handleError("Error: ", fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), p.config.Query.MaxSQLLength))
	}

	// 3. BeforeQuery hooks (middleware chain)
	var beforeHooks []string
	if len(p.goBeforeHooks) > 0 {
		sql, err = p.runGoBeforeHooks(ctx, sql)
		if err != nil {
			return p.handleError("Error: ", err)
		}
		for _, entry := range p.goBeforeHooks {
			beforeHooks = append(beforeHooks, entry.Name)
		}
	}

	// 4. Safety gate on the (possibly rewritten) statement
	if decision := p.protection.Classify(sql); !decision.Allowed {
		p.logger.Warn().
			Str("sql", truncateForLog(sql, 200)).
			Str("keyword", decision.Keyword).
			Msg("potentially dangerous SQL operation detected")
		return errorResult(protection.DeniedMessage)
	}

	// 5. Determine timeout
	queryTimeout, timeoutRule := p.timeoutMgr.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// 6. Scoped connection, released on every path
	conn, err := p.db.Conn(queryCtx)
	if err != nil {
		return p.handleError(queryErrorPrefix, err)
	}
	defer conn.Close()

	result, err := p.dialect.Execute(queryCtx, conn, sql)
	if err != nil {
		return p.handleError(queryErrorPrefix, err)
	}

	// 7. Sanitize and format
	sanitized := false
	var text string
	if result.HasResultSet {
		if p.sanitizer.HasRules() {
			p.sanitizer.Rows(result.Rows)
			sanitized = true
		}
		text = formatResultSet(result)
	} else {
		text = fmt.Sprintf(rowsAffectedFormat, result.RowsAffected)
	}

	// 8. Max result length
	text, truncated := truncateResult(text, p.config.Query.MaxResultLength)

	logEvent := p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(result.Rows)).
		Int64("rows_affected", result.RowsAffected)
	if len(beforeHooks) > 0 {
		logEvent = logEvent.Strs("before_hooks", beforeHooks)
	}
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if sanitized {
		logEvent = logEvent.Bool("sanitized", true)
	}
	if truncated {
		logEvent = logEvent.Bool("truncated", true)
	}
	logEvent.Msg("query executed")

	return textResult(text)
}

// runGoBeforeHooks runs Go-interface BeforeQuery hooks in middleware chain.
func (p *SQLMcp) runGoBeforeHooks(ctx context.Context, sql string) (string, error) {
	for _, entry := range p.goBeforeHooks {
		hookTimeout := entry.Timeout
		if hookTimeout == 0 {
			hookTimeout = time.Duration(p.config.DefaultHookTimeoutSeconds) * time.Second
		}
		hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)

		modified, err := entry.Hook.Run(hookCtx, sql)
		cancel()
		if err != nil {
			if hookCtx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("before_query hook error: hook timed out (name: %s, timeout: %s)", entry.Name, hookTimeout)
			}
			return "", fmt.Errorf("before_query hook error: hook rejected query (name: %s): %w", entry.Name, err)
		}
		sql = modified
	}
	return sql, nil
}

// formatResultSet renders a header line, a dash separator of the same length
// and one line per row. Zero rows yield the no-results sentinel.
func formatResultSet(result *dialect.Result) string {
	if len(result.Rows) == 0 {
		return noResultsText
	}
	return formatTable(result.Columns, result.Rows)
}

func formatTable(columns []string, rows [][]*string) string {
	header := strings.Join(columns, cellSeparator)
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteByte('\n')
	// separator matches the header's length in characters
	sb.WriteString(strings.Repeat("-", utf8.RuneCountInString(header)))
	cells := make([]string, len(columns))
	for _, row := range rows {
		for i, v := range row {
			if v == nil {
				cells[i] = nullText
			} else {
				cells[i] = *v
			}
		}
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(cells[:len(row)], cellSeparator))
	}
	return sb.String()
}

// handleError converts err into error text. The message is evaluated against
// error_prompts and matching guidance is appended.
func (p *SQLMcp) handleError(prefix string, err error) ToolResult {
	errMsg, patterns := p.errPrompts.Annotate(err.Error())

	logEvent := p.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	return errorResult(prefix + errMsg)
}

// truncateResult cuts text to maxLen characters (runes).
func truncateResult(text string, maxLen int) (string, bool) {
	if utf8.RuneCountInString(text) <= maxLen {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:maxLen]) + truncatedSuffix, true
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
