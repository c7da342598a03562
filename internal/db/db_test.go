package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	var name string
	err = d.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'reconcile_ledger'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "reconcile_ledger", name)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, d.Close())
}
