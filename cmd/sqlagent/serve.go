package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
	"github.com/rickchristie/sqlagent-mcp/internal/meta"
)

const (
	shutdownTimeout = 10 * time.Second
	defaultMCPAddr  = ":8080"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := configFlag(fs)
	useHTTP := fs.Bool("http", false, "Serve streamable HTTP at server.mcp_addr instead of stdio")
	fs.Parse(args)

	// 1. Load config
	serverConfig, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	addr := serverConfig.Server.MCPAddr
	if *useHTTP && addr == "" {
		addr = defaultMCPAddr
	}
	stdio := addr == ""

	// 2. Setup logger; stdout belongs to the protocol on stdio
	logger := setupLogger(serverConfig.Logging, stdio)

	// 3. Create the engine
	engine, err := newEngine(serverConfig, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Test database connection
	logger.Info().Str("driver", engine.Dialect()).Msg("testing database connection")
	if err := engine.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	mcpServer := sqlmcp.NewMCPServer(engine, serverName, meta.Version)

	if stdio {
		logger.Info().Msg("serving MCP over stdio")
		return server.ServeStdio(mcpServer)
	}
	return serveHTTP(ctx, mcpServer, addr, logger)
}

// serveHTTP serves MCP at /mcp and a liveness probe at /healthz until ctx
// is cancelled.
func serveHTTP(ctx context.Context, mcpServer *server.MCPServer, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	// process liveness only, not DB connectivity
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	// Start() does not register the handler when a custom *http.Server is given.
	mux.Handle("/mcp", streamableServer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving MCP over streamable HTTP")
		errCh <- streamableServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := streamableServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
