package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Config carries the environment-driven settings shared by subcommands.
type Config struct {
	DBPath    string
	Addr      string
	JWTSecret string
	NATSURL   string
}

// LoadConfig reads configuration from SOLARDESK_* environment variables,
// defaulting the database path to ~/.solardesk/solardesk.db.
func LoadConfig() (Config, error) {
	cfg := Config{
		DBPath:    os.Getenv("SOLARDESK_DB"),
		Addr:      os.Getenv("SOLARDESK_ADDR"),
		JWTSecret: os.Getenv("SOLARDESK_JWT_SECRET"),
		NATSURL:   os.Getenv("SOLARDESK_NATS_URL"),
	}
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("finding home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".solardesk", "solardesk.db")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return cfg, nil
}

// App holds the configuration and logger the CLI commands wire from.
type App struct {
	Config Config
	Log    zerolog.Logger
}

// NewRootCmd creates the top-level "solardesk" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "solardesk",
		Short: "Solar installation CRM and lead timeline service",
	}

	root.AddCommand(
		newServeCmd(app),
		newMigrateCmd(app),
		newSeedCmd(app),
	)

	return root
}
