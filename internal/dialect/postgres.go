package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const pgListTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema()
  AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name;
`

// Columns come back in the same shape as MySQL's DESCRIBE.
const pgDescribeSQL = `
SELECT
    c.column_name AS field,
    CASE WHEN c.character_maximum_length IS NOT NULL
         THEN c.data_type || '(' || c.character_maximum_length || ')'
         ELSE c.data_type
    END AS type,
    c.is_nullable AS nullable,
    CASE WHEN pk.column_name IS NOT NULL THEN 'PRI' ELSE '' END AS key_role,
    c.column_default AS default_val,
    CASE WHEN c.is_identity = 'YES' THEN 'identity'
         WHEN c.is_generated = 'ALWAYS' THEN 'generated'
         ELSE ''
    END AS extra
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
        AND tc.table_schema = current_schema()
        AND tc.table_name = $1
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = current_schema()
    AND c.table_name = $1
ORDER BY c.ordinal_position;
`

// Postgres runs against the current schema of the connected database.
type Postgres struct{}

// Name implements Dialect.
func (Postgres) Name() string { return "postgres" }

// Open parses a pgx config so statements use the extended protocol, which
// rejects multi-statement strings.
func (Postgres) Open(p Params) (*sql.DB, error) {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	connConfig, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeExec
	return stdlib.OpenDB(*connConfig), nil
}

// ListTables implements Dialect.
func (Postgres) ListTables(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, pgListTablesSQL)
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

// DescribeTable implements Dialect. The name is bound as a parameter, never
// interpolated, so no escaping is needed.
func (Postgres) DescribeTable(ctx context.Context, q Queryer, table string) ([]Column, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}
	rows, err := q.QueryContext(ctx, pgDescribeSQL, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var field, typ, null, key, extra string
		var def sql.NullString
		if err := rows.Scan(&field, &typ, &null, &key, &def, &extra); err != nil {
			return nil, err
		}
		col := Column{Field: field, Type: typ, Nullable: null == "YES", Key: key, Extra: extra}
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Introspect implements Dialect.
func (p Postgres) Introspect(ctx context.Context, q Queryer) ([]Table, error) {
	names, err := p.ListTables(ctx, q)
	if err != nil {
		return nil, err
	}
	tables := make([]Table, 0, len(names))
	for _, name := range names {
		columns, err := p.DescribeTable(ctx, q, name)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Columns: columns})
	}
	return tables, nil
}

// Execute implements Dialect using the native pgx connection underneath conn,
// which reports field descriptions and the command tag for every statement.
func (Postgres) Execute(ctx context.Context, conn *sql.Conn, query string) (*Result, error) {
	result := &Result{}
	err := conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		tx, err := sc.Conn().Begin(ctx)
		if err != nil {
			return err
		}
		// parent ctx may already be cancelled by a timeout; rollback must still run
		defer tx.Rollback(context.WithoutCancel(ctx))

		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		fields := rows.FieldDescriptions()
		for _, fd := range fields {
			result.Columns = append(result.Columns, fd.Name)
		}
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				rows.Close()
				return err
			}
			row := make([]*string, len(values))
			for i, v := range values {
				row[i] = formatValue(v)
			}
			result.Rows = append(result.Rows, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(fields) > 0 {
			result.HasResultSet = true
			return nil
		}
		result.RowsAffected = rows.CommandTag().RowsAffected()
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
