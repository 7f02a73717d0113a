package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"anoa.com/memberclub/internal/bootstrap"
	"anoa.com/memberclub/pkg/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// ContainerEnv gates the container-backed tests; they need a Docker daemon.
const ContainerEnv = "MEMBERCLUB_PG_IT"

func skipWithoutContainers(t *testing.T) {
	t.Helper()
	if os.Getenv(ContainerEnv) != "1" {
		t.Skipf("set %s=1 to run container integration tests", ContainerEnv)
	}
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}
}

// NewPostgresDB starts a throwaway Postgres container and migrates it. Concurrency
// tests use it to exercise real row locking instead of SQLite's single writer.
func NewPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	skipWithoutContainers(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "memberclub",
			"POSTGRES_PASSWORD": "memberclub",
			"POSTGRES_DB":       "memberclub",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=memberclub password=memberclub dbname=memberclub sslmode=disable",
		host, port.Port())
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, bootstrap.Migrate(db))
	return db
}
