package persistence

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationState is the catalog schema version after a migrate call
type MigrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	// Empty is true when no migration has ever been applied
	Empty bool `json:"empty"`
}

// RunMigrations applies every pending catalog migration under dir
func RunMigrations(databaseURL, dir string) error {
	return withMigrate(databaseURL, dir, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		return nil
	})
}

// RollbackMigrations reverts the last steps applied migrations
func RollbackMigrations(databaseURL, dir string, steps int) error {
	if steps <= 0 {
		return errors.New("rollback steps must be greater than 0")
	}
	return withMigrate(databaseURL, dir, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		return nil
	})
}

// CurrentMigration reports the applied schema version
func CurrentMigration(databaseURL, dir string) (MigrationState, error) {
	var state MigrationState
	err := withMigrate(databaseURL, dir, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			state.Empty = true
			return nil
		case err != nil:
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		state.Version, state.Dirty = version, dirty
		return nil
	})
	return state, err
}

// withMigrate opens a migrate instance on file://dir, runs fn and always
// releases both the source and the database handle
func withMigrate(databaseURL, dir string, fn func(*migrate.Migrate) error) (err error) {
	switch {
	case dir == "":
		return errors.New("migrations path cannot be empty")
	case databaseURL == "":
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	return fn(m)
}
