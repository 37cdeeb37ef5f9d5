package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_core_tables.sql",
		"001_init_extensions.sql",
		"002_core_tables.down.sql",
		"003_indexes.sql",
		"003_indexes.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	up, err := migrationFiles(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "001_init_extensions.sql"),
		filepath.Join(dir, "002_core_tables.sql"),
		filepath.Join(dir, "003_indexes.sql"),
	}, up)

	down, err := migrationFiles(dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "003_indexes.down.sql"),
		filepath.Join(dir, "002_core_tables.down.sql"),
	}, down)
}
