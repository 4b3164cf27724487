package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solardesk/solardesk/internal/db"
	"github.com/solardesk/solardesk/internal/notify"
	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/server"
	"github.com/solardesk/solardesk/internal/service"
	"github.com/solardesk/solardesk/internal/timeline"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app)
		},
	}
}

func runServe(ctx context.Context, app *App) error {
	cfg := app.Config
	if cfg.JWTSecret == "" {
		return fmt.Errorf("SOLARDESK_JWT_SECRET must be set")
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	leadRepo := repository.NewSQLiteLeadRepo(database)
	templateRepo := repository.NewSQLiteStepTemplateRepo(database)
	instanceRepo := repository.NewSQLiteStepInstanceRepo(database)
	activityRepo := repository.NewSQLiteActivityLogRepo(database)
	documentRepo := repository.NewSQLiteDocumentRepo(database)

	uow := db.NewSQLiteUnitOfWork(database)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.NATSURL != "" {
		nn, err := notify.NewNATSNotifier(cfg.NATSURL, app.Log)
		if err != nil {
			return fmt.Errorf("connecting notifier: %w", err)
		}
		defer nn.Close()
		notifier = nn
	}

	policy := timeline.NewValidationPolicy(documentRepo)
	engine := timeline.NewEngine(uow, policy, notifier, app.Log)
	override := timeline.NewOverrideAuthority(engine)

	srv := server.New(
		service.NewLeadService(leadRepo, instanceRepo, templateRepo, activityRepo, uow),
		service.NewCatalogService(templateRepo, uow),
		service.NewDocumentService(documentRepo),
		engine,
		override,
		[]byte(cfg.JWTSecret),
		app.Log,
	)

	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.Log.Info().Str("addr", cfg.Addr).Str("db", cfg.DBPath).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	app.Log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
