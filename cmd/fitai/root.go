// Command fitai runs database maintenance and onboarding plan commands from
// the terminal. Usage: go run ./cmd/fitai --help
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lg/fitai-go-api/internal/config"
)

var (
	dbURL     string
	cachePath string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "fitai",
	Short:         "fitai computes, validates and syncs onboarding plans",
	Long:          "fitai is the command-line companion to the API: migrations, user creation and offline plan evaluation, finalize and resync.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("LOG_FORMAT") == "" {
			os.Setenv("LOG_FORMAT", "console")
		}
		c, err := config.Load()
		if err != nil {
			return err
		}
		c.SetupLogging()
		if dbURL != "" {
			c.DBURL = dbURL
		}
		if cachePath != "" {
			c.CachePath = cachePath
		}
		cfg = c
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Postgres URL (default $DB_URL)")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Path to the local SQLite cache (default $CACHE_PATH)")
}
