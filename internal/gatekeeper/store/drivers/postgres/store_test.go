package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/storetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "gatekeeper"
	pgPassword = "gatekeeper"
)

// startPostgres runs a throwaway postgres and returns a DSN for the server's
// maintenance database.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres driver tests need docker; skipped with -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://%s:%s@%s:%s", pgUser, pgPassword, host, port.Port())
}

func TestConformance(t *testing.T) {
	base := startPostgres(t)
	ctx := context.Background()

	admin, err := postgres.NewStore(ctx, base+"/postgres?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	// One database per subtest keeps them independent without restarting the container.
	var n int
	newStore := func(t *testing.T) store.Store {
		n++
		name := fmt.Sprintf("gk_test_%d", n)
		require.NoError(t, postgres.CreateDatabase(ctx, admin, name))

		s, err := postgres.NewStore(ctx, base+"/"+name+"?sslmode=disable")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.ApplyMigrations())
		require.NoError(t, s.ApplyMigrations())
		return s
	}

	storetest.Run(t, newStore)
	// READ COMMITTED lets a racer read a holder another transaction is
	// about to delete; those races must still end in Conflict.
	storetest.RunServiceRaces(t, newStore)
}
