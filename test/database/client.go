// Package database provides a disposable PostgreSQL fixture for
// integration tests: a testcontainer in local dev, or the CI-provided
// service container when CI_DATABASE_URL is set, wrapped in the same
// pkg/database.Client the running engine uses so migrations are
// exercised identically in tests and production.
package database

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	latticedb "github.com/freelancing-solutions/lattice-mutation-engine/pkg/database"
)

// NewTestClient returns a *database.Client backed by a freshly migrated
// PostgreSQL instance. In CI (CI_DATABASE_URL set) it connects to the
// external service container; locally it starts and tears down its own
// testcontainer per test.
func NewTestClient(t *testing.T) *latticedb.Client {
	t.Helper()
	ctx := context.Background()

	cfg := latticedb.Config{
		Database:        "test",
		User:            "test",
		Password:        "test",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}

	if ciDSN := os.Getenv("CI_DATABASE_URL"); ciDSN != "" {
		t.Log("using external PostgreSQL from CI_DATABASE_URL")
		cfg = parseCIConfig(t, ciDSN)
	} else {
		t.Log("using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase(cfg.Database),
			postgres.WithUsername(cfg.User),
			postgres.WithPassword(cfg.Password),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		mappedPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
		require.NoError(t, err)
		cfg.Host = host
		cfg.Port = mappedPort.Int()
	}

	client, err := latticedb.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

// parseCIConfig breaks a libpq-style connection URL (as CI service
// containers typically expose it) into the discrete fields
// pkg/database.Config.DSN rebuilds from.
func parseCIConfig(t *testing.T, dsn string) latticedb.Config {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	port := 5432
	if p := u.Port(); p != "" {
		parsed, err := strconv.Atoi(p)
		require.NoError(t, err)
		port = parsed
	}
	password, _ := u.User.Password()
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return latticedb.Config{
		Host:            u.Hostname(),
		Port:            port,
		User:            u.User.Username(),
		Password:        password,
		Database:        strings.TrimPrefix(u.Path, "/"),
		SSLMode:         sslMode,
		MaxConns:        10,
		MinConns:        1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}
