package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whatsapp-template-studio/internal/config"
	"whatsapp-template-studio/internal/models"
)

// Open connects to the configured store and runs the auto-migration.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("connected to database", zap.String("driver", cfg.DBDriver))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database migration completed")
	return db, nil
}

// Connect opens the database without migrating it.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	default:
		dialector = sqlite.Open(cfg.DBPath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	return db, nil
}

// ConnectSQLite opens a sqlite file directly.
func ConnectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite %s: %w", path, err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error", "fatal":
		return logger.Error
	default:
		return logger.Warn
	}
}

// SyncConfig reconciles credentials with the settings table. Values stored in
// the database win; otherwise the configured values are saved.
func SyncConfig(db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	settings := []struct {
		Key   string
		Value *string
	}{
		{"VERIFY_TOKEN", &cfg.VerifyToken},
		{"WHATSAPP_TOKEN", &cfg.WhatsAppToken},
		{"WABA_ID", &cfg.WhatsAppBusinessAccountID},
		{"META_APP_ID", &cfg.MetaAppID},
	}

	for _, s := range settings {
		var setting models.SystemSetting
		err := db.Where("key = ?", s.Key).First(&setting).Error
		switch {
		case err == nil:
			if setting.Value != "" {
				*s.Value = setting.Value
			}
		case *s.Value != "":
			if err := db.Create(&models.SystemSetting{Key: s.Key, Value: *s.Value}).Error; err != nil {
				return fmt.Errorf("save setting %s: %w", s.Key, err)
			}
		}
	}
	log.Info("system settings synchronized from database")
	return nil
}
