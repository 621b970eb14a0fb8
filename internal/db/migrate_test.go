package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_PairedUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrations_CreateQueriedTables(t *testing.T) {
	raw, err := fs.ReadFile(Migrations(), "migrations/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	for _, table := range []string{"member_types", "users", "posts", "profiles", "subscribers_on_authors"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, sql, "('basic', 2.3, 20)")
	assert.Contains(t, sql, "('business', 7.7, 100)")
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "host=localhost port=5432 user=postgres password=admin dbname=socialql sslmode=disable", cfg.DSN())
}

func TestRollbackMigrations_RejectsNonPositiveSteps(t *testing.T) {
	err := RollbackMigrations(nil, 0, nil)
	require.Error(t, err)
}
