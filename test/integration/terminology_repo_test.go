//go:build integration

// Integration tests for the terminology store.  They spin up a throwaway
// PostgreSQL container, apply the real migrations, and exercise the
// repository against it.  Run with:
//
//	go test -tags integration ./test/integration/...
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres"
	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres/repositories"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "clinsight"
	pgPassword = "clinsight"
	pgDatabase = "clinsight_test"
)

// startPostgres launches a disposable database container and returns a
// migrated connection pool.  The container is torn down with the test.
func startPostgres(t *testing.T) *postgres.Connection {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dbCfg := config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     pgUser,
		Password: pgPassword,
		DBName:   pgDatabase,
		SSLMode:  "disable",
		MaxConns: 5,
	}

	migrations, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NoError(t, postgres.RunMigrations(dbCfg.DSN(), fmt.Sprintf("file://%s", migrations)))

	conn, err := postgres.NewConnection(ctx, dbCfg, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func TestTerminologyRepository_RoundTrip(t *testing.T) {
	conn := startPostgres(t)
	repo := repositories.NewTerminologyRepository(conn.Pool(), nil)
	ctx := context.Background()

	seed := []repositories.Description{
		{ID: 1, ConceptID: 233604007, Term: "Pneumonia", Active: true},
		{ID: 2, ConceptID: 233604007, Term: "Pneumonia (disorder)", Active: true},
		{ID: 3, ConceptID: 301226008, Term: "Lower respiratory tract infection", Active: true},
		{ID: 4, ConceptID: 194828000, Term: "Angina pectoris", Active: false},
	}
	written, err := repo.InsertBatch(ctx, seed)
	require.NoError(t, err)
	require.EqualValues(t, 4, written)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, count, "count reports active rows only")

	results, err := repo.Search(ctx, "pneumonia", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Pneumonia", results[0].Term, "shortest term sorts first")
	require.Equal(t, "233604007", results[0].Code)

	// Inactive rows never surface.
	results, err = repo.Search(ctx, "angina", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestTerminologyRepository_InsertBatchUpserts(t *testing.T) {
	conn := startPostgres(t)
	repo := repositories.NewTerminologyRepository(conn.Pool(), nil)
	ctx := context.Background()

	_, err := repo.InsertBatch(ctx, []repositories.Description{
		{ID: 1, ConceptID: 22298006, Term: "Myocardial infarction", Active: true},
	})
	require.NoError(t, err)

	// Re-importing the same id updates the row in place.
	_, err = repo.InsertBatch(ctx, []repositories.Description{
		{ID: 1, ConceptID: 22298006, Term: "Myocardial infarction (disorder)", Active: true},
	})
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	results, err := repo.Search(ctx, "myocardial", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Myocardial infarction (disorder)", results[0].Term)
}

func TestTerminologyRepository_ReplaceAllSwapsSnapshot(t *testing.T) {
	conn := startPostgres(t)
	repo := repositories.NewTerminologyRepository(conn.Pool(), nil)
	ctx := context.Background()

	_, err := repo.InsertBatch(ctx, []repositories.Description{
		{ID: 1, ConceptID: 233604007, Term: "Pneumonia", Active: true},
		{ID: 2, ConceptID: 195967001, Term: "Asthma", Active: true},
	})
	require.NoError(t, err)

	n, err := repo.ReplaceAll(ctx, []repositories.Description{
		{ID: 10, ConceptID: 38341003, Term: "Hypertensive disorder", Active: true},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	results, err := repo.Search(ctx, "pneumonia", 10)
	require.NoError(t, err)
	require.Empty(t, results, "old snapshot rows are gone")

	results, err = repo.Search(ctx, "hypertensive", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "38341003", results[0].Code)
}

func TestTerminologyRepository_SearchEscapesWildcards(t *testing.T) {
	conn := startPostgres(t)
	repo := repositories.NewTerminologyRepository(conn.Pool(), nil)
	ctx := context.Background()

	_, err := repo.InsertBatch(ctx, []repositories.Description{
		{ID: 1, ConceptID: 271649006, Term: "Blood pressure 100% abnormal", Active: true},
		{ID: 2, ConceptID: 271649006, Term: "Blood pressure reading", Active: true},
	})
	require.NoError(t, err)

	results, err := repo.Search(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "%% must match literally, not as a wildcard")
}
