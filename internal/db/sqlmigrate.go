package db

import (
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var sqlMigrations embed.FS

// RunSQLMigrations applies the embedded SQL migrations to a postgres URL.
// It is the DBA-facing alternative to Migrate for managed databases.
func RunSQLMigrations(databaseURL string) error {
	src, err := iofs.New(sqlMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("load sql migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
