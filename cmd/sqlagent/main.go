package main

import (
	"fmt"
	"os"

	sqlmcp "github.com/rickchristie/sqlagent-mcp"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "chat":
		err = runChat(os.Args[2:])
	case "api":
		err = runAPI(os.Args[2:])
	case "doctor":
		err = runDoctor(os.Args[2:])
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("sqlagent: natural-language SQL agent with MCP database tools")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sqlagent serve [--http]   Serve the database tools over MCP (stdio by default)")
	fmt.Println("  sqlagent chat             Ask questions interactively")
	fmt.Println("  sqlagent api              Serve the chat HTTP API")
	fmt.Println("  sqlagent doctor           Check configuration and connectivity")
	fmt.Println("  sqlagent --help           Show this help message")
	fmt.Println()
	fmt.Println("Every command accepts --config <file> (YAML or .env; default: $SQLAGENT_CONFIG, then ./.env).")
	if usage := sqlmcp.Usage(); usage != "" {
		fmt.Println()
		fmt.Println(usage)
	}
}
