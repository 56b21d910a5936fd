package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/diewo77/chantierpro/internal/models"
	"github.com/diewo77/chantierpro/migrations"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

var requiredTables = []string{"users", "profiles", "documents", "line_items", "document_events"}

// Migrate applies the embedded SQL migrations when useSQL is set and the
// database is postgres, AutoMigrate otherwise.
func Migrate(db *gorm.DB, dsn string, useSQL bool, lg *slog.Logger) error {
	if useSQL && db.Dialector.Name() == "postgres" {
		lg.Info("running sql migrations")
		if err := RunSQLMigrations(dsn); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range models.All() {
			if err := db.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations runs migrations/*.sql up to the latest version.
func RunSQLMigrations(dsn string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, ToURLDSN(NormalizeDSN(dsn)))
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
