package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/storefront/internal/db"
)

const sessionDBImage = "postgres:17-alpine"

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// SessionDB is a throwaway postgres with the session_tokens schema applied
type SessionDB struct {
	DSN  string
	Pool *pgxpool.Pool
}

// StartSessionDB runs postgres in docker and migrates the token store schema.
// The container and pool are released when the test ends
func StartSessionDB(t *testing.T) SessionDB {
	t.Helper()

	if out, err := exec.Command("docker", "info", "--format", "{{.ServerVersion}}").CombinedOutput(); err != nil {
		t.Fatalf("session store tests need a running docker daemon: %s", out)
	}

	port, err := RandomPort()
	require.NoError(t, err, "no free port for session db")

	container, err := postgres.Run(t.Context(),
		sessionDBImage,
		postgres.WithDatabase("storefront-sessions"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "session db container did not start")
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(t.Context())
	require.NoError(t, err)
	t.Logf("Session db started, DSN=%v", dsn)

	pool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "session_tokens schema migration failed")
	t.Cleanup(pool.Close)

	return SessionDB{DSN: dsn, Pool: pool}
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// InSessionTx runs fn in a transaction that is rolled back afterwards,
// so token rows written by fn never reach other subtests
func InSessionTx(t *testing.T, conn txBeginner, fn func(tx pgx.Tx)) {
	t.Helper()

	tx, err := conn.Begin(t.Context())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, tx.Rollback(t.Context()))
	}()

	fn(tx)
}
