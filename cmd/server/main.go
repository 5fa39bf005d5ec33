// Command server runs the quill blog backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "quill blog backend",
	Long: `quill serves the blog HTTP API: cookie based authentication,
posts with draft, scheduled and published states, categories and tags.

Configuration is read from the environment (QUILL_ADDR, DATABASE_URL,
REDIS_URL, KAFKA_BROKERS, JWT_SIGNING_KEY, ...).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
