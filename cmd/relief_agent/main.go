// Package main provides the entry point for the relief intake CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relief_agent",
	Short: "Disaster relief resource intake and matching",
	Long: `relief_agent turns free-text and spoken reports of available relief resources into structured,
geolocated, audited records, and ranks stored resources against an emergency situation.

Configuration is read from --config, then the environment (including a .env file), then defaults.
Command-line flags override both.`,
	SilenceUsage: true,
}

var (
	rootConfigPath  string
	rootDatabaseURL string
	rootVerbose     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	rootCmd.PersistentFlags().StringVar(&rootDatabaseURL, "db-url", "", "Database URL: postgres:// or a SQLite path (defaults to DATABASE_URL env var)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
