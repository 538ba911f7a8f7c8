package config

import (
	"fmt"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the gorm connection backing durable client storage and
// migrates its table.
func InitDB(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.StorageDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.StorageDSN)
	case "mysql":
		dialector = mysql.Open(cfg.StorageDSN)
	default:
		return nil, fmt.Errorf("storage driver %q has no sql database", cfg.StorageDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}

	if err := db.AutoMigrate(&models.StorageEntry{}); err != nil {
		return nil, fmt.Errorf("migrate storage: %w", err)
	}
	utils.InfoLogger.Printf("Storage ready (driver=%s)", cfg.StorageDriver)
	return db, nil
}
