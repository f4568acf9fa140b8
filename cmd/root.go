// Package cmd wires the CLI surface: serve runs the HTTP API,
// migrate applies the database schema, version prints build info.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentdeck",
	Short: "agentdeck - chat orchestration API for AI agents and productivity tools",
	Long: `agentdeck serves the chat streaming API: agent conversations with
tool calling, resumable SSE streams, and chat history persistence.

Run "agentdeck serve" to start the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
