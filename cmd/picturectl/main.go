package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "picturectl",
	Short: "Operator tool for the picture API",
	Long: `picturectl runs maintenance tasks against the picture API database.

It reads the same environment as the server (DB_POSTGRESQL_WRITE_DSN, REDIS_URL, ...)
and takes the shared ranking lock when Redis is configured, so it is safe to run next
to live servers.

Examples:
  picturectl migrate
  picturectl ledger check --format json
  picturectl ledger compact`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFiles,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(ledgerCmd)

	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "Env files to load before reading configuration; missing files are skipped")
}

func loadEnvFiles(cmd *cobra.Command, _ []string) error {
	paths, _ := cmd.Flags().GetStringSlice("env-file")
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}
