package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
	"github.com/rickchristie/sqlagent-mcp/internal/llm"
	"github.com/rickchristie/sqlagent-mcp/internal/meta"
	"github.com/rickchristie/sqlagent-mcp/internal/protection"
)

const doctorTimeout = 15 * time.Second

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	useColor := isTTY(os.Stderr.Fd())
	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()
	return doctor(ctx, os.Stderr, useColor, *configPath)
}

func doctor(ctx context.Context, w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "sqlagent %s\n\n", meta.Version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if ok {
		ok = doctorConnectivity(ctx, w, useColor, config)
	}
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'sqlagent doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the configuration, printing check
// results. Returns the config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*sqlmcp.ServerConfig, bool) {
	allPassed := true
	source := configPath
	if source == "" {
		source = "environment"
	}

	config, err := sqlmcp.LoadServerConfig(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Configuration loads (%s): %v", source, err))
		return nil, false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Configuration loads (%s)", source))

	if err := config.Connection.Validate(); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database settings are complete: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Database settings are complete (%s %s@%s:%d/%s)",
			config.Connection.Driver, config.Connection.User, config.Connection.Host,
			config.Connection.Port, config.Connection.Database))
	}

	regexOK := true
	check := func(kind string, i int, pattern string) {
		if _, err := regexp.Compile(pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("%s[%d] regex compiles: %v", kind, i, err))
			regexOK = false
			allPassed = false
		}
	}
	for i, rule := range config.ErrorPrompts {
		check("error_prompts", i, rule.Pattern)
	}
	for i, rule := range config.Sanitization {
		check("sanitization", i, rule.Pattern)
	}
	for i, rule := range config.Query.TimeoutRules {
		check("timeout_rules", i, rule.Pattern)
	}
	for i, h := range config.CommandHooks {
		check("command_hooks", i, h.Pattern)
		if h.Command == "" {
			printCheck(w, useColor, false, fmt.Sprintf("command_hooks[%d] has a command", i))
			allPassed = false
		}
	}
	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	gate := protection.NewChecker(protection.Config{ExtraKeywords: config.Protection.ExtraKeywords})
	printCheck(w, useColor, true, "Non-SELECT statements containing "+strings.Join(gate.Keywords(), ", ")+" are denied")

	backend, err := llm.New(backendConfig(config.LLM), zerolog.Nop())
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Language model is configured: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Language model is configured (%s, %s)", config.LLM.Provider, backend.Model()))
	}

	return config, allPassed
}

// doctorConnectivity pings the database and performs a tool server handshake.
func doctorConnectivity(ctx context.Context, w io.Writer, useColor bool, config *sqlmcp.ServerConfig) bool {
	engine, err := newEngine(config, zerolog.Nop())
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database engine starts: %v", err))
		return false
	}
	defer engine.Close()

	if err := engine.Ping(ctx); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database is reachable: %v", err))
		return false
	}
	printCheck(w, useColor, true, "Database is reachable")

	tools, err := connectTools(ctx, config, engine, zerolog.Nop())
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Tool server handshake: %v", err))
		return false
	}
	defer tools.Close()
	info := tools.ServerInfo()
	printCheck(w, useColor, true, fmt.Sprintf("Tool server handshake (%s %s, %d tools)", info.Name, info.Version, len(sqlmcp.ToolNames())))
	return true
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	mark, color := "✓", "\033[32m"
	if !pass {
		mark, color = "✗", "\033[31m"
	}
	if useColor {
		fmt.Fprintf(w, "  %s%s\033[0m %s\n", color, mark, msg)
	} else {
		fmt.Fprintf(w, "  %s %s\n", mark, msg)
	}
}

// printAgentSnippets prints MCP client configuration for the tool server.
func printAgentSnippets(w io.Writer, useColor bool, config *sqlmcp.ServerConfig) {
	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}
	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	if config.Server.MCPAddr != "" {
		port := config.Server.MCPAddr
		if _, p, err := net.SplitHostPort(port); err == nil {
			port = p
		}
		url := fmt.Sprintf("http://localhost:%s/mcp", port)
		subheading("Streamable HTTP (start with 'sqlagent serve --http')")
		fmt.Fprintf(w, "    claude mcp add --transport http sqlagent %s\n\n", url)
		fmt.Fprintf(w, `  {
    "mcpServers": {
      "sqlagent": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
		return
	}

	subheading("Stdio")
	fmt.Fprintf(w, "    claude mcp add sqlagent -- sqlagent serve\n\n")
	fmt.Fprint(w, `  {
    "mcpServers": {
      "sqlagent": {
        "command": "sqlagent",
        "args": ["serve"]
      }
    }
  }
`)
}
