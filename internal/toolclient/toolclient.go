// Package toolclient is the agent side of the MCP tool protocol: it performs
// the initialize handshake, checks the advertised tool set and runs typed
// tool invocations.
package toolclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
)

// ErrMissingTools is returned by the constructors when the server does not
// advertise every database tool.
var ErrMissingTools = errors.New("tool server does not provide the required tools")

// Client is a connected MCP session. Calls are independent; the server keeps
// no state between them.
type Client struct {
	mcp        *client.Client
	serverInfo mcp.Implementation
	logger     zerolog.Logger
}

// Info names this client in the initialize handshake.
var Info = mcp.Implementation{Name: "sqlagent", Version: "dev"}

// NewInProcess connects to srv running in the same process.
func NewInProcess(ctx context.Context, srv *server.MCPServer, logger zerolog.Logger) (*Client, error) {
	c, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-process client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start in-process client: %w", err)
	}
	return connect(ctx, c, logger.With().Str("transport", "inprocess").Logger())
}

// NewStdio spawns command as a subprocess and talks to it over stdin/stdout.
// The subprocess's stderr is forwarded to logger.
func NewStdio(ctx context.Context, command string, args, env []string, logger zerolog.Logger) (*Client, error) {
	logger = logger.With().Str("transport", "stdio").Str("command", command).Logger()
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start tool server %q: %w", command, err)
	}
	if stderr, ok := client.GetStderr(c); ok {
		go forwardStderr(stderr, logger)
	}
	return connect(ctx, c, logger)
}

// NewHTTP connects to a streamable HTTP MCP endpoint, e.g. http://host:8080/mcp.
func NewHTTP(ctx context.Context, url string, logger zerolog.Logger) (*Client, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP client: %w", err)
	}
	return connect(ctx, c, logger.With().Str("transport", "http").Str("url", url).Logger())
}

func connect(ctx context.Context, c *client.Client, logger zerolog.Logger) (*Client, error) {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = Info
	initResult, err := c.Initialize(ctx, initReq)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize failed: %w", err)
	}

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("tools/list failed: %w", err)
	}
	advertised := make(map[string]bool, len(tools.Tools))
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		advertised[tool.Name] = true
		names = append(names, tool.Name)
	}
	var missing []string
	for _, name := range sqlmcp.ToolNames() {
		if !advertised[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		_ = c.Close()
		return nil, fmt.Errorf("%w: missing %s", ErrMissingTools, strings.Join(missing, ", "))
	}

	logger.Info().
		Str("server_name", initResult.ServerInfo.Name).
		Str("server_version", initResult.ServerInfo.Version).
		Strs("tools", names).
		Msg("connected to tool server")

	return &Client{mcp: c, serverInfo: initResult.ServerInfo, logger: logger}, nil
}

// ServerInfo is the server's self-description from the handshake.
func (c *Client) ServerInfo() mcp.Implementation {
	return c.serverInfo
}

// Call runs inv. The error is non-nil only for protocol or transport
// failures; tool failures come back as a ToolResult with IsError set.
func (c *Client) Call(ctx context.Context, inv sqlmcp.Invocation) (sqlmcp.ToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = inv.Tool()
	req.Params.Arguments = inv.Arguments()

	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Str("tool", inv.Tool()).Msg("tool call failed")
		return sqlmcp.ToolResult{}, fmt.Errorf("%s: %w", inv.Tool(), err)
	}
	return sqlmcp.ToolResult{Text: textOf(res), IsError: res.IsError}, nil
}

// Close ends the session and, for stdio, the subprocess.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// textOf joins the text content blocks of res.
func textOf(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func forwardStderr(r io.Reader, logger zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Debug().Str("stderr", scanner.Text()).Msg("tool server output")
	}
}
