// Package sqlmcp exposes a relational database to language-model agents as a
// fixed set of tools served over the Model Context Protocol (MCP).
//
// The four tools are get_database_schema, list_tables, describe_table and
// query_data. Every tool returns text; failures are reported as text prefixed
// with "Error" so an agent can show them to a user without a separate error
// channel.
//
// query_data runs each statement through a pipeline: SQL length limit,
// BeforeQuery hooks, a keyword safety gate, a per-statement timeout, execution
// on a scoped connection inside its own transaction, cell sanitization and
// result truncation. The safety gate is a heuristic: statements starting with
// SELECT always pass, anything else containing DROP, DELETE, TRUNCATE or ALTER
// is refused with "Error: Potentially dangerous SQL operation detected".
//
// MySQL is the default engine; PostgreSQL is supported through pgx.
//
// # Library Usage
//
//	p, err := sqlmcp.New(sqlmcp.Config{
//		Connection: sqlmcp.ConnectionConfig{
//			Host: "localhost", Port: 3306,
//			User: "agent", Password: pw, Database: "shop",
//		},
//		Query: sqlmcp.QueryConfig{
//			MaxConcurrent:               4,
//			DefaultTimeoutSeconds:       30,
//			SchemaTimeoutSeconds:        30,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	// Use directly
//	result := p.Invoke(ctx, sqlmcp.QueryDataCall{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or serve as MCP tools
//	server.ServeStdio(sqlmcp.NewMCPServer(p, "sqlagent", version))
//
// # Hooks
//
// BeforeQuery hooks run as a middleware chain before the safety gate, so a
// hook may rewrite a statement but cannot smuggle a denied one past the gate:
//
//	type TenantHook struct{}
//
//	func (h *TenantHook) Run(ctx context.Context, query string) (string, error) {
//		if !strings.Contains(query, "tenant_id") {
//			return "", errors.New("queries must filter by tenant_id")
//		}
//		return query, nil
//	}
//
// The sqlagent CLI also accepts external programs as hooks (command_hooks in
// its YAML config). They are appended to BeforeQueryHooks and receive the
// statement on stdin.
package sqlmcp
