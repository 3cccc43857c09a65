package db

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func newMigrate(dbURL, dir string) (*migrate.Migrate, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), dbURL)
	if err != nil {
		return nil, fmt.Errorf("Error reading migrations: %w", err)
	}
	return m, nil
}

func MigrateUp(dbURL, dir string) error {
	m, err := newMigrate(dbURL, dir)
	if err != nil {
		return err
	}
	defer m.Close()
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("While migrating up: %w", err)
	}
	return nil
}
func MigrateDown(dbURL, dir string) error {
	m, err := newMigrate(dbURL, dir)
	if err != nil {
		return err
	}
	defer m.Close()
	err = m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("While migrating down: %w", err)
	}
	return nil
}
func Drop(dbURL, dir string) error {
	m, err := newMigrate(dbURL, dir)
	if err != nil {
		return err
	}
	defer m.Close()
	err = m.Drop()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("While dropping: %w", err)
	}
	return nil
}
