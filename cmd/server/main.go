package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resplan/internal/config"
	"resplan/internal/database"
	"resplan/internal/logger"
	"resplan/internal/server"
	"resplan/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	rootCmd = &cobra.Command{
		Use:          "resplan",
		Short:        "Consulting resource planning server",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the database and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), serve)
		},
	}

	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Migrate the schema, seed roles and statuses, ensure an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *app) error {
				return nil
			})
		},
	}

	syncCmd = &cobra.Command{
		Use:   "sync-consultants",
		Short: "Repair consultant records against the Consultant role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *app) error {
				report, err := app.svc.Consultants.EnsureConsultantEntries(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d consultant records, granted %d roles\n",
					report.RowsCreated, report.RolesGranted)
				return nil
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, bootstrapCmd, syncCmd)
}

type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	svc *services.Services
}

// withApp loads config, connects, bootstraps and hands the wired app to fn.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Bootstrap(ctx, db, database.BootstrapOptions{
		AdminUsername: cfg.AdminUsername,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}, log); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	return fn(ctx, &app{cfg: cfg, log: log, db: db, svc: services.New(db, log)})
}

func serve(ctx context.Context, a *app) error {
	if err := a.cfg.RequireServe(); err != nil {
		return err
	}
	if a.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.ServerPort,
		Handler:           server.NewRouter(a.cfg, a.db, a.svc, a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
