package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/cellsync/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunMigratesAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "cellsync.db")

	require.NoError(t, run(zap.NewNop(), db.DriverSQLite, dsn, 0, true, true))
	version, _, err := db.SchemaVersion(db.DriverSQLite, dsn)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version, "dry run must not migrate")

	require.NoError(t, run(zap.NewNop(), db.DriverSQLite, dsn, 0, false, true))
	version, _, err = db.SchemaVersion(db.DriverSQLite, dsn)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	backups, err := filepath.Glob(dsn + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	require.NoError(t, run(zap.NewNop(), db.DriverSQLite, dsn, 1, false, false))
	version, _, err = db.SchemaVersion(db.DriverSQLite, dsn)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestBackupFileMissingIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	require.NoError(t, backupFile(zap.NewNop(), path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
