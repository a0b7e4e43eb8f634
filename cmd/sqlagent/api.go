package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
	"github.com/rickchristie/sqlagent-mcp/internal/agent"
	"github.com/rickchristie/sqlagent-mcp/internal/chatapi"
	"github.com/rickchristie/sqlagent-mcp/internal/llm"
	"github.com/rickchristie/sqlagent-mcp/internal/toolclient"
)

func runAPI(args []string) error {
	fs := flag.NewFlagSet("api", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	serverConfig, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(serverConfig.Logging, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(serverConfig, logger)
	if err != nil {
		return err
	}

	factory, cleanup, err := chatFactory(ctx, serverConfig, backend, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := &http.Server{
		Addr:              serverConfig.Server.ChatAddr,
		Handler:           chatapi.NewHandler(factory, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Msg("serving chat API")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// chatFactory checks the database settings up front in both modes, so a
// subprocess setup with missing credentials fails at startup rather than on
// the first request.
func chatFactory(ctx context.Context, cfg *sqlmcp.ServerConfig, backend llm.Backend, logger zerolog.Logger) (chatapi.Factory, func(), error) {
	if err := cfg.Connection.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Server.ServerCommand != "" {
		return subprocessFactory(cfg, backend, logger), func() {}, nil
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	tools, err := connectTools(ctx, cfg, engine, logger)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	cleanup := func() {
		tools.Close()
		engine.Close()
	}
	return sharedFactory(cfg, backend, tools, logger), cleanup, nil
}

// sharedFactory gives every request a fresh session over one in-process tool
// client. The tool registry is stateless, so sharing it is safe.
func sharedFactory(cfg *sqlmcp.ServerConfig, backend llm.Backend, tools *toolclient.Client, logger zerolog.Logger) chatapi.Factory {
	return func(ctx context.Context) (chatapi.Answerer, func(), error) {
		return agent.New(backend, tools, newSession(cfg), logger), func() {}, nil
	}
}

// subprocessFactory spawns a tool server per request and stops it afterwards.
func subprocessFactory(cfg *sqlmcp.ServerConfig, backend llm.Backend, logger zerolog.Logger) chatapi.Factory {
	return func(ctx context.Context) (chatapi.Answerer, func(), error) {
		tools, err := connectTools(ctx, cfg, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if err := tools.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to stop tool server")
			}
		}
		return agent.New(backend, tools, newSession(cfg), logger), release, nil
	}
}
