// README: Schema migrations applied with golang-migrate over the pgx/v5 driver.
package postgres

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrateUp applies every pending migration found in dir.
func MigrateUp(dsn, dir string) error {
	m, err := newMigrate(dsn, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("migrations: schema is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("migrations applied successfully")
	return nil
}

// MigrateDown reverts every applied migration.
func MigrateDown(dsn, dir string) error {
	m, err := newMigrate(dsn, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration rollback failed: %w", err)
	}
	return nil
}

func newMigrate(dsn, dir string) (*migrate.Migrate, error) {
	m, err := migrate.New("file://"+dir, MigrateURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("could not start migrations: %w", err)
	}
	return m, nil
}

// MigrateURL rewrites a postgres DSN to the pgx5 scheme golang-migrate
// registers for the pgx/v5 driver.
func MigrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
