// Package cmd provides the CLI commands for supportchat.
//
// Commands:
//   - serve: HTTP API server (the default when no command is given)
//   - migrate: apply pending database migrations and exit
//   - version: print version information
//
// Signal handling and graceful shutdown are implemented for serve via
// context cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the supportchat application.
func Execute() error {
	if len(os.Args) < 2 {
		return runServe()
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("supportchat - customer support chat backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  supportchat               Start the HTTP API server")
	fmt.Println("  supportchat serve         Start the HTTP API server")
	fmt.Println("  supportchat migrate       Apply pending database migrations")
	fmt.Println("  supportchat --version     Show version information")
	fmt.Println("  supportchat --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY            Required: Gemini API key")
	fmt.Println("  DATABASE_URL              Optional: overrides SUPPORTCHAT_POSTGRES_* settings")
	fmt.Println("  SUPPORTCHAT_ADDR          Optional: listen address (default: 127.0.0.1:3001)")
	fmt.Println("  SUPPORTCHAT_LOG_LEVEL     Optional: debug, info, warn, error")
}
