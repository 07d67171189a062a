package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/go-production/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate runs AutoMigrate for all ledger models.
// Used for sqlite and for development databases.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&models.Project{}, &models.Phase{}, &models.Product{}, &models.Production{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// MigrateSQL applies the embedded SQL migrations with golang-migrate.
// databaseURL must be in postgres:// URL form.
func MigrateSQL(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// RequiredTables are checked after migrating.
var RequiredTables = []string{"projects", "phases", "products", "productions"}

// CheckTables ensures the ledger tables exist.
func CheckTables(db *gorm.DB) error {
	for _, table := range RequiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}
