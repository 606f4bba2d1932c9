// Package main provides the entry point for the painting generator server and its client commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "painting_agent",
	Short: "Painting generator HTTP API server and client",
	Long: `Painting generator turns a title into a series of painting ideas and images.

The server runs the idea stage synchronously for each generate request and
paints the ideas in the background, streaming progress to the owner over SSE.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
