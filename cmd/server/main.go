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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whatsapp-template-studio/internal/api"
	"whatsapp-template-studio/internal/config"
	"whatsapp-template-studio/internal/database"
	"whatsapp-template-studio/internal/logging"
	"whatsapp-template-studio/internal/studio"
	"whatsapp-template-studio/internal/submission"
	"whatsapp-template-studio/internal/tracker"
	"whatsapp-template-studio/internal/webhook"
	"whatsapp-template-studio/internal/whatsapp"
	"whatsapp-template-studio/internal/wizard"
	"whatsapp-template-studio/internal/ws"
)

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:   "template-studio",
		Short: "WhatsApp template studio",
		Long:  `Generates, edits and submits WhatsApp Business message templates and tracks their approval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is ./.env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newBackend picks where templates are submitted and checked. Generation
// always goes through the studio backend.
func newBackend(cfg *config.Config, logger *zap.Logger) wizard.Backend {
	studioClient := studio.NewClient(cfg.StudioAPIURL, cfg.HTTPTimeout, logger)

	if cfg.StudioBackend == config.BackendMeta {
		metaClient := whatsapp.NewClient(cfg, logger)
		return wizard.Backend{
			Generator: studioClient,
			Submitters: map[wizard.Variant]submission.Submitter{
				wizard.Customize: metaClient,
				wizard.Analyze:   metaClient,
			},
			Checker: metaClient,
			Flows:   metaClient,
		}
	}

	return wizard.Backend{
		Generator: studioClient,
		Submitters: map[wizard.Variant]submission.Submitter{
			wizard.Customize: studioClient.Submitter(wizard.Customize),
			wizard.Analyze:   studioClient.Submitter(wizard.Analyze),
		},
		Checker: studioClient,
		Flows:   studioClient,
	}
}

func runServer() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting template studio",
		zap.String("backend", cfg.StudioBackend),
		zap.String("db_driver", cfg.DBDriver))

	db, err := database.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.SyncConfig(db, cfg, logger); err != nil {
		logger.Warn("failed to sync settings", zap.Error(err))
	}
	records := database.NewRecords(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	track := tracker.New(records, hub, logger)
	registry := wizard.NewRegistry(newBackend(cfg, logger), wizard.Config{
		PollInterval: cfg.PollInterval,
		IdleTimeout:  cfg.SessionIdleTimeout,
	}, track, logger)
	go registry.RunReaper(ctx)

	gin.SetMode(cfg.GinMode)
	router := api.NewRouter(api.Deps{
		Registry: registry,
		Records:  records,
		Hub:      hub,
		Webhook:  webhook.NewHandler(cfg, track, logger),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			registry.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-sigChan:
		logger.Info("received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", zap.Error(err))
	}

	// Pollers first so their last events still reach the hub.
	registry.Close()
	cancel()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server stopped")
	return nil
}

func runMigrations() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}
