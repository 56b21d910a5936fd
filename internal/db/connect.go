// Package db opens the database, applies the schema and seeds the
// authorization data.
package db

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/diewo77/chantierpro/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	retryDelay      = 2 * time.Second
)

// Connect opens the configured database. Postgres is retried while the
// server starts up; sqlite is opened once.
func Connect(cfg config.DatabaseConfig, lg *slog.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.New(
		log.New(os.Stdout, "[GORM] ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)}

	var (
		dialector gorm.Dialector
		dsn       string
		attempts  = connectAttempts
	)
	switch cfg.Driver {
	case "sqlite":
		dsn = cfg.DSN
		if dsn == "" {
			dsn = "chantierpro.db"
		}
		dialector, attempts = sqlite.Open(dsn), 1
	case "postgres", "":
		dsn = NormalizeDSN(cfg.PostgresDSN())
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= attempts; i++ {
		if db, err = gorm.Open(dialector, gormCfg); err == nil {
			break
		}
		lg.Warn("database not ready", "attempt", i, "of", attempts, "error", err)
		if i < attempts {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	lg.Info("database connected", "driver", dialector.Name(), "dsn", MaskDSN(dsn))
	return db, nil
}
