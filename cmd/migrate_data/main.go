// Command migrate_data copies the sqlite store into PostgreSQL.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whatsapp-template-studio/internal/config"
	"whatsapp-template-studio/internal/database"
	"whatsapp-template-studio/internal/logging"
	"whatsapp-template-studio/internal/models"
)

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

	// 1. Connect to SQLite (Source)
	sqliteDB, err := database.ConnectSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to connect to sqlite", zap.Error(err))
	}
	logger.Info("connected to sqlite", zap.String("path", cfg.DBPath))

	// 2. Connect to PostgreSQL (Destination)
	pgCfg := *cfg
	pgCfg.DBDriver = config.DriverPostgres
	pgDB, err := database.Open(&pgCfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	logger.Info("starting data migration")

	failed := false
	migrateTable := func(tableName string, rows any) {
		log := logger.With(zap.String("table", tableName))
		if err := sqliteDB.Find(rows).Error; err != nil {
			log.Error("failed to read from sqlite", zap.Error(err))
			failed = true
			return
		}

		// IDs are kept so foreign keys stay valid; rows already copied are skipped.
		err := pgDB.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 200).Error
		})
		if err != nil {
			log.Error("failed to write to postgres", zap.Error(err))
			failed = true
			return
		}
		log.Info("table migrated")
	}

	// Parents before children
	var submissions []models.Submission
	migrateTable("submissions", &submissions)

	var checks []models.StatusCheck
	migrateTable("status_checks", &checks)

	var assets []models.MediaAsset
	migrateTable("media_assets", &assets)

	var settings []models.SystemSetting
	migrateTable("system_settings", &settings)

	if failed {
		logger.Error("migration finished with errors, run sync_sequences after fixing them")
		os.Exit(1)
	}
	logger.Info("migration completed, run sync_sequences next")
}
