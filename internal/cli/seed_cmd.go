package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/service"
)

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the default step catalog (no-op when a catalog exists)",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenDB(app.Config.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			catalog := service.NewCatalogService(
				repository.NewSQLiteStepTemplateRepo(database),
				db.NewSQLiteUnitOfWork(database),
			)
			n, err := catalog.Seed(cmd.Context())
			if err != nil {
				return fmt.Errorf("seeding catalog: %w", err)
			}
			if n == 0 {
				app.Log.Info().Msg("catalog already present, nothing seeded")
				return nil
			}
			app.Log.Info().Int("templates", n).Msg("default catalog installed")
			return nil
		},
	}
}
