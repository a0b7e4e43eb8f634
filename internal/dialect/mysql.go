package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/rickchristie/sqlagent-mcp/internal/ident"
)

const (
	mysqlListTablesSQL = "SHOW TABLES"
	mysqlRowCountSQL   = "SELECT ROW_COUNT()"
)

// MySQL is the default dialect.
type MySQL struct{}

// Name implements Dialect.
func (MySQL) Name() string { return "mysql" }

// Open builds a connector from p. No network I/O happens until first use.
func (MySQL) Open(p Params) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	cfg.DBName = p.Database

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// ListTables implements Dialect.
func (MySQL) ListTables(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, mysqlListTablesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeTable escapes table with ident.Escape before interpolating it.
func (m MySQL) DescribeTable(ctx context.Context, q Queryer, table string) ([]Column, error) {
	escaped := ident.Escape(table)
	if escaped == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}
	return m.describe(ctx, q, escaped)
}

// Introspect implements Dialect. Enumerated names are trusted and fully quoted.
func (m MySQL) Introspect(ctx context.Context, q Queryer) ([]Table, error) {
	names, err := m.ListTables(ctx, q)
	if err != nil {
		return nil, err
	}
	tables := make([]Table, 0, len(names))
	for _, name := range names {
		columns, err := m.describe(ctx, q, ident.Quote(name))
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Columns: columns})
	}
	return tables, nil
}

func (MySQL) describe(ctx context.Context, q Queryer, quoted string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, "DESCRIBE "+quoted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var field, typ, null, key, extra sql.NullString
		var def sql.NullString
		if err := rows.Scan(&field, &typ, &null, &key, &def, &extra); err != nil {
			return nil, err
		}
		col := Column{
			Field:    field.String,
			Type:     typ.String,
			Nullable: null.String == "YES",
			Key:      key.String,
			Extra:    extra.String,
		}
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Execute implements Dialect. database/sql does not expose the affected-row
// count of a statement run through QueryContext, so it is read back with
// ROW_COUNT() on the same connection.
func (MySQL) Execute(ctx context.Context, conn *sql.Conn, query string) (*Result, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	columns, data, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		return &Result{Columns: columns, Rows: data, HasResultSet: true}, nil
	}

	var affected int64
	if err := tx.QueryRowContext(ctx, mysqlRowCountSQL).Scan(&affected); err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: affected}, nil
}
