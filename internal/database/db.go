package database

import (
	"fmt"
	"strings"
	"time"

	"resplan/internal/config"
	"resplan/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxAttempts  = 10
	retryBackoff = 2 * time.Second
)

// Open connects (retrying while the server comes up) and migrates the schema.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var db *gorm.DB
	for i := 1; i <= maxAttempts; i++ {
		log.Info("connecting to database", zap.String("driver", cfg.DBDriver), zap.Int("attempt", i))

		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}

		log.Warn("failed to connect to database", zap.Error(err))
		if cfg.DBDriver == "sqlite" {
			// a local file either opens or it does not
			break
		}
		time.Sleep(retryBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db after retries: %w", err)
	}

	if isMemory(cfg) {
		// every pooled connection to :memory: would be a fresh empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "postgres", "":
		return postgres.Open(cfg.DBDSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DBDSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

func isMemory(cfg *config.Config) bool {
	return cfg.DBDriver == "sqlite" && strings.Contains(cfg.DBDSN, ":memory:")
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
