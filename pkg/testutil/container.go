// Package testutil provides testing utilities for the pantry services:
// a shared PostgreSQL testcontainer, sqlmock suites, a recording broker,
// HTTP helpers and inventory fixtures.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:15-alpine"

var (
	sharedContainer *postgres.PostgresContainer
	sharedDSN       string
	containerOnce   sync.Once
	containerErr    error
)

// postgresDSN starts the package-wide PostgreSQL container on first use and
// returns its connection string
func postgresDSN(ctx context.Context) (string, error) {
	containerOnce.Do(func() {
		sharedContainer, containerErr = postgres.RunContainer(ctx,
			testcontainers.WithImage(postgresImage),
			postgres.WithDatabase("pantry_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if containerErr != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", containerErr)
			return
		}
		sharedDSN, containerErr = sharedContainer.ConnectionString(ctx, "sslmode=disable")
	})
	return sharedDSN, containerErr
}

// TerminateContainer removes the shared container. Call it from TestMain
// after m.Run.
func TerminateContainer(ctx context.Context) {
	if sharedContainer != nil {
		_ = sharedContainer.Terminate(ctx)
	}
}
