package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
	"github.com/rickchristie/sqlagent-mcp/internal/agent"
	"github.com/rickchristie/sqlagent-mcp/internal/hooks"
	"github.com/rickchristie/sqlagent-mcp/internal/llm"
	"github.com/rickchristie/sqlagent-mcp/internal/meta"
	"github.com/rickchristie/sqlagent-mcp/internal/toolclient"
)

const serverName = "sqlagent"

// configFlag registers --config on fs. The default comes from SQLAGENT_CONFIG.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", os.Getenv("SQLAGENT_CONFIG"), "Path to a YAML or .env configuration file")
}

func loadConfig(path string) (*sqlmcp.ServerConfig, error) {
	cfg, err := sqlmcp.LoadServerConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the process logger. When stdoutReserved is set (stdio
// MCP transport) a configured stdout output falls back to stderr.
func setupLogger(config sqlmcp.LoggingConfig, stdoutReserved bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" && !stdoutReserved {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" && config.Output != "stdout" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// promptPassword asks for the database password on an interactive terminal
// when none is configured.
func promptPassword(conn *sqlmcp.ConnectionConfig) {
	if conn.Password != "" || !isTTY(os.Stdin.Fd()) {
		return
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", conn.User, conn.Host)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return
	}
	conn.Password = string(password)
}

// newEngine creates the tool engine with the configured command hooks
// appended to the BeforeQuery chain.
func newEngine(cfg *sqlmcp.ServerConfig, logger zerolog.Logger) (*sqlmcp.SQLMcp, error) {
	config := cfg.Config
	for _, hc := range cfg.CommandHooks {
		cmd := hooks.NewCommand(hc, logger)
		config.BeforeQueryHooks = append(config.BeforeQueryHooks, sqlmcp.BeforeQueryHookEntry{
			Name:    cmd.Name(),
			Timeout: cmd.Timeout(),
			Hook:    cmd,
		})
	}
	return sqlmcp.New(config, logger)
}

// connectTools connects an MCP client to the database tools: a subprocess
// when server.server_command is set, otherwise engine in-process. engine may
// be nil in the subprocess case.
func connectTools(ctx context.Context, cfg *sqlmcp.ServerConfig, engine *sqlmcp.SQLMcp, logger zerolog.Logger) (*toolclient.Client, error) {
	if cfg.Server.ServerCommand != "" {
		return toolclient.NewStdio(ctx, cfg.Server.ServerCommand, cfg.Server.ServerArgs, os.Environ(), logger)
	}
	return toolclient.NewInProcess(ctx, sqlmcp.NewMCPServer(engine, serverName, meta.Version), logger)
}

// newBackend builds the language-model backend from cfg.LLM.
func newBackend(cfg *sqlmcp.ServerConfig, logger zerolog.Logger) (llm.Backend, error) {
	return llm.New(backendConfig(cfg.LLM), logger)
}

func backendConfig(c sqlmcp.LLMConfig) llm.Config {
	apiKey := c.APIKey
	if strings.EqualFold(c.Provider, llm.ProviderAnthropic) {
		apiKey = c.AnthropicAPIKey
	}
	return llm.Config{
		Provider:    c.Provider,
		BaseURL:     c.BaseURL,
		APIKey:      apiKey,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		JSONMode:    c.JSONMode,
		Timeout:     time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// newSession starts a conversation with the configured system prompt.
func newSession(cfg *sqlmcp.ServerConfig) *agent.Session {
	prompt := cfg.Agent.SystemPrompt
	if prompt == "" {
		prompt = agent.DefaultSystemPrompt
	}
	return agent.NewSession(prompt, cfg.Agent.MaxHistoryMessages)
}
