// Package cmd provides the CLI commands for ragchat.
//
// Commands:
//   - serve: HTTP JSON API server for the web front-end
//   - ask: one-shot grounded question against the selected engine
//   - version: build information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mirag/ragchat/internal/log"
)

// Execute is the main entry point for the ragchat CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ask":
		return runAsk(logger, os.Args[2:])
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
	fmt.Println("ragchat - Conversational front-end for Vertex AI RAG corpora")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragchat serve [addr]     Start HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  ragchat ask <question>   Ask a one-shot grounded question")
	fmt.Println("  ragchat version          Show version information")
	fmt.Println("  ragchat help             Show this help")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  ~/.ragchat/config.yaml   Settings file (project, location, model, ...)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GOOGLE_CLOUD_PROJECT     Google Cloud project ID")
	fmt.Println("  GOOGLE_CLOUD_LOCATION    Vertex AI location (default: us-east1)")
	fmt.Println("  GOOGLE_CLIENT_ID         OAuth client ID")
	fmt.Println("  GOOGLE_CLIENT_SECRET     OAuth client secret")
	fmt.Println("  DEBUG                    Enable debug logging")
}
