// Package dbtest starts a throwaway postgres for tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const image = "postgres:16-alpine"

// StartPostgres runs a postgres container and returns its connection URL.
// stop must be called to remove the container.
func StartPostgres(ctx context.Context) (dbURL string, stop func(), err error) {
	// Docker host discovery panics when no daemon can be found.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("hasker"),
		postgres.WithUsername("hasker"),
		postgres.WithPassword("hasker"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("starting postgres container: %w", err)
	}
	stop = func() {
		ctr.Terminate(context.Background())
	}

	dbURL, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		stop()
		return "", nil, err
	}
	return dbURL, stop, nil
}

// MigrationsDir is the absolute path of the repository's migrations.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
