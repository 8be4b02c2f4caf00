package repository

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"filehost-backend/internal/blob"
	"filehost-backend/internal/database"
)

var (
	testDSN  string
	testPool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:14-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Fatalf("failed to terminate postgres container: %s", err)
		}
	}()

	testDSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %s", err)
	}

	testPool, err = pgxpool.New(ctx, testDSN)
	if err != nil {
		log.Fatalf("failed to connect to test database: %s", err)
	}

	os.Exit(m.Run())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRepository builds an initialized repository over the shared test
// database with its own blob area.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	base := t.TempDir()
	blobs, err := blob.NewLocalStore(filepath.Join(base, "uploads"), filepath.Join(base, ".tmp.uploads"))
	require.NoError(t, err)

	repo := New(database.NewStore(testPool), blobs, clock.WallClock, testLogger(), 2*time.Minute)
	require.NoError(t, repo.Initialize(context.Background(), testDSN))
	return repo
}

// newBareRepository builds a repository that never touches the store, for
// cache-only and upload-code behavior.
func newBareRepository(clk clock.Clock) *Repository {
	return New(nil, nil, clk, testLogger(), 2*time.Minute)
}

// stageContent writes content into the repository's staging area the way an
// upload handler would.
func stageContent(t *testing.T, repo *Repository, content string) (string, int64) {
	t.Helper()
	tempPath, size, err := repo.Blobs().Stage(strings.NewReader(content))
	require.NoError(t, err)
	return tempPath, size
}
