package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janhq/picture-api/internal/infrastructure/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  `Apply the embedded SQL migrations. The server does this on start; run it ahead of a rollout to keep startup fast.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	if err := database.Migrate(cmd.Context(), rt.db, rt.log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
