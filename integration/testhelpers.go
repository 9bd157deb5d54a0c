//go:build integration

package integration

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/migrate-gate/internal/database"
	"github.com/aqasim81/migrate-gate/internal/migration"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its
// connection string. The container is terminated when the test completes.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// NewPool opens a small pool against dsn, closed when the test completes.
func NewPool(t *testing.T, dsn string) *database.Pool {
	t.Helper()

	pool, err := database.NewPool(context.Background(), dsn, database.PoolConfig{
		MaxConns:       4,
		MinConns:       1,
		AcquireTimeout: 10 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	return pool
}

// SetupPostgres starts a container and returns a pool connected to it.
func SetupPostgres(t *testing.T) *database.Pool {
	t.Helper()

	return NewPool(t, SetupPostgresDSN(t))
}

// sourceOf builds an in-memory migration source from id/SQL pairs.
func sourceOf(pairs ...string) *migration.Source {
	fsys := fstest.MapFS{}
	for i := 0; i+1 < len(pairs); i += 2 {
		fsys[pairs[i]+".sql"] = &fstest.MapFile{Data: []byte(pairs[i+1])}
	}

	return migration.NewSource(fsys)
}
