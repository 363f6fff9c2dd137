package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies pending up-migrations from migrationsPath. A schema left
// dirty by an interrupted run is reported instead of being migrated over.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if ver, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("schema version %d is dirty, fix it before starting", ver)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		slog.Debug("database schema up to date")
	case err != nil:
		return fmt.Errorf("running migrations: %w", err)
	}

	ver, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}
	slog.Info("database migrations applied", "version", ver)
	return nil
}
