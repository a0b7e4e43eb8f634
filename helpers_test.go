package sqlmcp

import (
	"os"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() Config {
	return Config{
		Query: QueryConfig{
			MaxConcurrent:               2,
			DefaultTimeoutSeconds:       5,
			SchemaTimeoutSeconds:        5,
			ListTablesTimeoutSeconds:    5,
			DescribeTableTimeoutSeconds: 5,
		},
		DefaultHookTimeoutSeconds: 1,
	}
}

// newTestInstance builds an engine over a sqlmock database. Expectations are
// checked when the test ends.
func newTestInstance(t *testing.T, config Config) (*SQLMcp, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	p, err := New(config, testLogger(), WithDB(db))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
		_ = db.Close()
	})
	return p, mock
}

var describeColumns = []string{"Field", "Type", "Null", "Key", "Default", "Extra"}
