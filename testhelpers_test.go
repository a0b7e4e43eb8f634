//go:build integration

package sqlmcp_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rickchristie/govner/pgflock/client"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
)

const (
	mysqlImage        = "mysql:8.0"
	mysqlRootPassword = "test_password"

	pgflockLockerPort = 9776
	pgflockPassword   = "pgflock"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() sqlmcp.Config {
	return sqlmcp.Config{
		Query: sqlmcp.QueryConfig{
			MaxConcurrent:               4,
			DefaultTimeoutSeconds:       30,
			SchemaTimeoutSeconds:        30,
			ListTablesTimeoutSeconds:    10,
			DescribeTableTimeoutSeconds: 10,
			MaxSQLLength:                100000,
			MaxResultLength:             100000,
		},
		DefaultHookTimeoutSeconds: 5,
	}
}

// mysqlServer is one container shared by every test in the run.
type mysqlServer struct {
	container testcontainers.Container
	host      string
	port      int
}

var (
	sharedMySQL     *mysqlServer
	sharedMySQLOnce sync.Once
	sharedMySQLErr  error
	databaseSeq     atomic.Int64
)

func getMySQL(t *testing.T) *mysqlServer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	sharedMySQLOnce.Do(func() {
		sharedMySQL, sharedMySQLErr = startMySQL(context.Background())
	})
	if sharedMySQLErr != nil {
		t.Fatalf("Failed to start MySQL container: %v", sharedMySQLErr)
	}
	return sharedMySQL
}

func startMySQL(ctx context.Context) (*mysqlServer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        mysqlImage,
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": mysqlRootPassword,
			},
			// The init phase runs a temporary server on port 0 first.
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	return &mysqlServer{container: container, host: host, port: port.Int()}, nil
}

func (s *mysqlServer) connection(database string) sqlmcp.ConnectionConfig {
	return sqlmcp.ConnectionConfig{
		Driver:   "mysql",
		Host:     s.host,
		Port:     s.port,
		User:     "root",
		Password: mysqlRootPassword,
		Database: database,
	}
}

// newMySQLInstance creates a fresh database for the test and returns an
// engine connected to it.
func newMySQLInstance(t *testing.T, config sqlmcp.Config) *sqlmcp.SQLMcp {
	t.Helper()
	server := getMySQL(t)
	ctx := context.Background()

	database := fmt.Sprintf("it_%d", databaseSeq.Add(1))
	admin := server.newEngine(t, defaultConfig(), "mysql")
	var lastErr string
	for i := 0; i < 20; i++ {
		res := admin.QueryData(ctx, "CREATE DATABASE "+database)
		if !res.IsError {
			lastErr = ""
			break
		}
		lastErr = res.Text
		time.Sleep(500 * time.Millisecond)
	}
	if lastErr != "" {
		t.Fatalf("failed to create database %s: %s", database, lastErr)
	}

	return server.newEngine(t, config, database)
}

func (s *mysqlServer) newEngine(t *testing.T, config sqlmcp.Config, database string) *sqlmcp.SQLMcp {
	t.Helper()
	config.Connection = s.connection(database)
	p, err := sqlmcp.New(config, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// acquirePostgres locks a database from the pgflock pool for the test.
func acquirePostgres(t *testing.T) sqlmcp.ConnectionConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires pgflock)")
	}
	connStr, err := client.Lock(pgflockLockerPort, t.Name(), pgflockPassword)
	if err != nil {
		t.Fatalf("Failed to acquire test database: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Unlock(pgflockLockerPort, pgflockPassword, connStr)
	})

	cc, err := pgx.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("Failed to parse pgflock connection string: %v", err)
	}
	conn := sqlmcp.ConnectionConfig{
		Driver:   "postgres",
		Host:     cc.Host,
		Port:     int(cc.Port),
		User:     cc.User,
		Password: cc.Password,
		Database: cc.Database,
	}
	if cc.TLSConfig == nil {
		conn.SSLMode = "disable"
	}
	return conn
}

func newPostgresInstance(t *testing.T, config sqlmcp.Config) *sqlmcp.SQLMcp {
	t.Helper()
	config.Connection = acquirePostgres(t)
	p, err := sqlmcp.New(config, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func setupTable(t *testing.T, p *sqlmcp.SQLMcp, sql string) {
	t.Helper()
	res := p.QueryData(context.Background(), sql)
	if res.IsError {
		t.Fatalf("setup failed: %s", res.Text)
	}
}
