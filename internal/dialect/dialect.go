// Package dialect hides the differences between the supported database engines:
// how a connection is opened, how tables and columns are enumerated, and how a
// single statement is run inside a scoped transaction.
package dialect

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidIdentifier is returned when a table name has no usable characters.
var ErrInvalidIdentifier = errors.New("invalid table name")

// Params holds connection settings shared by all dialects.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // postgres only
}

// Column is one row of a table description.
type Column struct {
	Field    string
	Type     string
	Nullable bool
	Key      string  // engine key marker, "PRI" for primary key columns
	Default  *string // nil when the column has no default
	Extra    string
}

// Table is an enumerated table with its columns in physical order.
type Table struct {
	Name    string
	Columns []Column
}

// Result is the outcome of running one statement.
// Rows cells are nil for SQL NULL.
type Result struct {
	Columns      []string
	Rows         [][]*string
	HasResultSet bool
	RowsAffected int64
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect is implemented by each supported engine.
type Dialect interface {
	Name() string
	Open(p Params) (*sql.DB, error)
	ListTables(ctx context.Context, q Queryer) ([]string, error)
	// DescribeTable describes a caller-supplied (untrusted) table name.
	DescribeTable(ctx context.Context, q Queryer, table string) ([]Column, error)
	// Introspect enumerates every table and its columns.
	Introspect(ctx context.Context, q Queryer) ([]Table, error)
	// Execute runs query once in its own transaction. Statements that produce a
	// result set are rolled back; all others are committed.
	Execute(ctx context.Context, conn *sql.Conn, query string) (*Result, error)
}

// ByName returns the dialect registered under name ("mysql" or "postgres").
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "mysql":
		return MySQL{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q (expected mysql or postgres)", name)
	}
}

// scanStrings reads every row of rows as nullable strings.
func scanStrings(rows *sql.Rows) ([]string, [][]*string, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	out := make([][]*string, 0)
	for rows.Next() {
		cells := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		row := make([]*string, len(columns))
		for i, c := range cells {
			if c.Valid {
				v := c.String
				row[i] = &v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

// formatValue renders a natively decoded driver value as result text.
func formatValue(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case []byte:
		s = string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 && val.Location() == time.UTC {
			s = val.Format("2006-01-02")
		} else {
			s = val.Format("2006-01-02 15:04:05")
		}
	case [16]byte:
		s = fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			s = fmt.Sprint(val)
			break
		}
		return formatValue(dv)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	return &s
}
