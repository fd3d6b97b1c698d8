// Command sync_sequences moves PostgreSQL id sequences past rows copied in
// with explicit ids.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"whatsapp-template-studio/internal/config"
	"whatsapp-template-studio/internal/database"
	"whatsapp-template-studio/internal/logging"
)

var tables = []string{
	"submissions",
	"status_checks",
	"media_assets",
}

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.DBDriver != config.DriverPostgres {
		logger.Fatal("sequences only exist on postgres", zap.String("db_driver", cfg.DBDriver))
	}
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}

	logger.Info("syncing postgres sequences")

	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			logger.Error("failed to sync sequence", zap.String("table", table), zap.Error(err))
		} else {
			logger.Info("sequence synced", zap.String("table", table))
		}
	}
}
