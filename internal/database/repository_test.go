package database

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ audit.Recorder = (*AuditRepository)(nil)

func TestDSN(t *testing.T) {
	dsn := DSN(config.AuditConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "audit",
		Password: "secret",
		DBName:   "mechanicbano_admin",
		SSLMode:  "require",
		MaxConns: 4,
		MinConns: 1,
	})

	for _, part := range []string{
		"host=db.internal", "port=5433", "user=audit", "dbname=mechanicbano_admin",
		"sslmode=require", "pool_max_conns=4", "pool_min_conns=1",
	} {
		assert.True(t, strings.Contains(dsn, part), "dsn %q missing %q", dsn, part)
	}
}

// TestAuditRepository_RoundTrip runs against a real Postgres when
// AUDIT_TEST_HOST is set.
func TestAuditRepository_RoundTrip(t *testing.T) {
	host := os.Getenv("AUDIT_TEST_HOST")
	if host == "" {
		t.Skip("Skipping integration test - requires database connection")
	}

	db, err := New(config.AuditConfig{
		Host:     host,
		Port:     5432,
		User:     "postgres",
		Password: os.Getenv("AUDIT_TEST_PASSWORD"),
		DBName:   "postgres",
		SSLMode:  "disable",
		MaxConns: 2,
		MinConns: 1,
	})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	repo := NewAuditRepository(db)
	require.NoError(t, repo.Migrate(ctx))

	entry := audit.NewEntry(audit.WithActor(ctx, "admin@mechanicbano.in"), "pending", "approve", "42")
	require.NoError(t, repo.Record(ctx, entry))

	entries, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, "approve", entries[0].Action)
}
