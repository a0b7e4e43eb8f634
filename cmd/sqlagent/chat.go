package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
	"github.com/rickchristie/sqlagent-mcp/internal/agent"
)

const helpText = `
AI SQL Agent Help
======================
This tool translates your natural language questions into SQL queries.

Examples:
- "Show all tables"
- "Describe users"
- "Find all orders placed in the last week"
- "How many products cost more than $50?"
- "What's the average order value for each customer?"

Special commands:
- "help" or "?" - Show this help message
- "show tables" or "list tables" - List all tables in the database
- "describe [table]" or "desc [table]" - Show structure of a specific table
- "exit", "quit", or "bye" - Exit the application
======================`

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	serverConfig, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(serverConfig.Logging, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var engine *sqlmcp.SQLMcp
	if serverConfig.Server.ServerCommand == "" {
		promptPassword(&serverConfig.Connection)
		engine, err = newEngine(serverConfig, logger)
		if err != nil {
			return err
		}
		defer engine.Close()
	}

	backend, err := newBackend(serverConfig, logger)
	if err != nil {
		return err
	}
	tools, err := connectTools(ctx, serverConfig, engine, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to tool server: %w", err)
	}
	defer tools.Close()

	useColor := isTTY(os.Stdout.Fd())
	if useColor {
		printBanner(os.Stdout, true)
	}
	ui := newChatUI(os.Stdout, useColor, isTTY(os.Stderr.Fd()))
	return chatLoop(ctx, os.Stdin, ui, agent.New(backend, tools, newSession(serverConfig), logger))
}

// chatAgent is the part of *agent.Agent the loop needs.
type chatAgent interface {
	Answer(ctx context.Context, question string) (*agent.Answer, error)
	Run(ctx context.Context, inv sqlmcp.Invocation) (sqlmcp.ToolResult, error)
}

// chatUI renders the conversation.
type chatUI struct {
	w           io.Writer
	color       bool
	spinnerTerm bool
}

func newChatUI(w io.Writer, color, spinnerTerm bool) *chatUI {
	return &chatUI{w: w, color: color, spinnerTerm: spinnerTerm}
}

func (u *chatUI) style(code, s string) string {
	if !u.color {
		return s
	}
	return code + s + "\033[0m"
}

func (u *chatUI) printf(format string, args ...any) {
	fmt.Fprintf(u.w, format, args...)
}

// busy shows a spinner on stderr until the returned func is called.
func (u *chatUI) busy(msg string) func() {
	if !u.spinnerTerm {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr),
		spinner.WithSuffix(" "+msg),
	)
	s.Start()
	return s.Stop
}

// chatLoop reads questions from in until EOF, an exit command or ctx is done.
func chatLoop(ctx context.Context, in io.Reader, ui *chatUI, a chatAgent) error {
	ui.printf("\nWelcome to the AI SQL Agent!\n")
	ui.printf("Ask questions about your database in natural language, and I'll translate them to SQL and execute them.\n")
	ui.printf("Type 'help' for examples, or 'exit' to end the session.\n\n")

	if res, err := a.Run(ctx, sqlmcp.GetDatabaseSchemaCall{}); err != nil || res.IsError {
		ui.printf("%s\n", ui.style("\033[33m", "Warning: Could not load database schema."))
	} else {
		ui.printf("%s\n", ui.style("\033[32m", "Database schema loaded successfully!"))
	}

	done := make(chan struct{})
	defer close(done)
	lines, scanErr := readLines(in, done)
	for {
		ui.printf("\n%s", ui.style("\033[1m", "Ask a question: "))
		var line string
		select {
		case <-ctx.Done():
			ui.printf("\n\nSession interrupted. Goodbye!\n")
			return nil
		case l, ok := <-lines:
			if !ok {
				ui.printf("\n\nGoodbye!\n")
				return *scanErr
			}
			line = l
		}
		input := strings.TrimSpace(line)

		switch strings.ToLower(input) {
		case "exit", "quit", "bye":
			ui.printf("\nGoodbye!\n")
			return nil
		case "help", "?":
			ui.printf("%s\n", helpText)
			continue
		case "":
			continue
		}

		if inv, ok := agent.ParseCommand(input); ok {
			runCommand(ctx, ui, a, inv)
			continue
		}
		answer(ctx, ui, a, input)
	}
}

// readLines scans in on its own goroutine so a blocked read never delays an
// interrupt. The error is valid once lines is closed.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, *error) {
	lines := make(chan string)
	var err error
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		err = scanner.Err()
	}()
	return lines, &err
}

func runCommand(ctx context.Context, ui *chatUI, a chatAgent, inv sqlmcp.Invocation) {
	title := "Tables in database:"
	if d, ok := inv.(sqlmcp.DescribeTableCall); ok {
		title = fmt.Sprintf("Structure of table '%s':", d.Table)
	}
	res, err := a.Run(ctx, inv)
	if err != nil {
		ui.printf("\n%s\n", ui.style("\033[31m", "Error: "+err.Error()))
		return
	}
	ui.printf("\n%s\n%s\n", title, ui.style("\033[92m", res.Text))
}

func answer(ctx context.Context, ui *chatUI, a chatAgent, question string) {
	ui.printf("\nGenerating SQL query for: '%s'\n", question)
	stop := ui.busy("Thinking...")
	ans, err := a.Answer(ctx, question)
	stop()

	if err != nil {
		var agentErr *agent.Error
		if errors.As(err, &agentErr) {
			ui.printf("\n%s\n", ui.style("\033[31m", "Error: "+agentErr.Message))
			if agentErr.Details != "" {
				ui.printf("Details: %s\n", agentErr.Details)
			}
			return
		}
		ui.printf("\n%s\n", ui.style("\033[31m", "Error: An unexpected error occurred: "+err.Error()))
		return
	}

	ui.printf("\nGenerated SQL:\n%s\n", ui.style("\033[1m", ans.SQL))
	ui.printf("\nExplanation: %s\n", ans.Explanation)
	resultColor := "\033[92m"
	if ans.IsError {
		resultColor = "\033[31m"
	}
	ui.printf("\nResult:\n%s\n", ui.style(resultColor, ans.Result))
}
