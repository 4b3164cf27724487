package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solardesk/solardesk/internal/db"
)

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// OpenDB runs migrations as part of opening.
			database, err := db.OpenDB(app.Config.DBPath)
			if err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
			defer database.Close()

			app.Log.Info().Str("db", app.Config.DBPath).Msg("schema up to date")
			return nil
		},
	}
}
