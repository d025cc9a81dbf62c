package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/store/postgres"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// dsn returns TEST_DATABASE_URL or starts a postgres container.
func dsn(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	if testing.Short() {
		t.Skip("skipped, needs a postgres container")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := t.Context()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "notary",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/notary?sslmode=disable", host, port.Port())
}

func TestRepository(t *testing.T) {
	ctx := t.Context()
	url := dsn(t)
	repo, err := postgres.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
	})

	id := fmt.Sprintf("a%d.example.com:443,2", time.Now().UnixNano())

	t.Run("observations", func(t *testing.T) {
		require.NoError(t, repo.ReportObservation(ctx, id, "aa:bb"))
		require.NoError(t, repo.ReportObservation(ctx, id, "aa:bb"))

		recs, err := repo.Observations(ctx, id)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.Equal(t, "aa:bb", recs[0].Fingerprint)
		require.False(t, recs[0].LastSeen.Before(recs[0].FirstSeen))

		require.NoError(t, repo.ReportObservation(ctx, id, "cc:dd"))
		recs, err = repo.Observations(ctx, id)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		require.Equal(t, "cc:dd", recs[1].Fingerprint)
	})

	t.Run("metrics", func(t *testing.T) {
		require.NoError(t, repo.ReportMetric(ctx, "ServiceScanStart", "ServiceCount: 1"))
	})

	t.Run("schema is idempotent", func(t *testing.T) {
		pool, err := postgres.NewDB(ctx, url)
		require.NoError(t, err)
		defer pool.Close()
		require.NoError(t, postgres.EnsureSchema(ctx, pool))
	})
}

func TestNewDBBadDSN(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	_, err := postgres.NewDB(ctx, "this is not a dsn=")
	require.Error(t, err)
}
