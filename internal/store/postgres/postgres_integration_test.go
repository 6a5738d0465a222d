//go:build integration
// +build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/TJYumul/playgen/internal/store"
	"github.com/TJYumul/playgen/internal/store/storetest"
)

// startPostgres launches a throwaway Postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "playgen",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/playgen?sslmode=disable", host, port.Port())
}

func TestPostgresStore_Compliance(t *testing.T) {
	dsn := startPostgres(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := New(ctx, dsn)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			t.Fatalf("ensure schema: %v", err)
		}
		db, _ := Open(ctx, dsn)
		defer func() { _ = db.Close() }()
		if _, err := db.ExecContext(ctx, `TRUNCATE tracks, events, user_item_features RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
