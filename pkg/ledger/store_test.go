package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"clipvault/pkg/config"
	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(codes ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, logger.NewNopLogger())

	tried, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tried, "absent file is an empty set")

	require.NoError(t, store.Save(set("ZZZZZZ", "AAAAAA", "M00000")))

	data, err := os.ReadFile(filepath.Join(dir, TriedFileName))
	require.NoError(t, err)
	var onDisk []string
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, []string{"AAAAAA", "M00000", "ZZZZZZ"}, onDisk, "saved sorted")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, set("AAAAAA", "M00000", "ZZZZZZ"), loaded)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStoreMalformedFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TriedFileName), []byte("{not json"), 0644))

	tl := logger.NewTestLogger()
	store := NewFileStore(dir, tl)

	tried, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tried)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
}

func TestFileStoreSaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0644))

	// state dir is a regular file, so MkdirAll fails
	store := NewFileStore(filepath.Join(blocker, "state"), nil)
	err := store.Save(set("AAAAAA"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypePersistence, errs.TypeOf(err))
}

func TestFileStoreEnsure(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, nil)

	require.NoError(t, store.Ensure())
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))

	require.NoError(t, store.Save(set("AAAAAA")))
	require.NoError(t, store.Ensure(), "existing file untouched")
	tried, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, tried, 1)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := OpenSQLite(path, nil)
	require.NoError(t, err)

	tried, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tried)

	require.NoError(t, store.Save(set("AAAAAA", "BBBBBB")))
	require.NoError(t, store.Save(set("AAAAAA", "BBBBBB", "CCCCCC")), "re-saving existing codes is idempotent")
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	tried, err = reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, set("AAAAAA", "BBBBBB", "CCCCCC"), tried)
}

func TestSQLiteStoreCorruptDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, os.WriteFile(path, []byte("this is definitely not an sqlite database file, just text padding it out"), 0644))

	_, err := OpenSQLite(path, nil)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypePersistence, errs.TypeOf(err))
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	store, closeFn, err := Open(config.ProbeConfig{LedgerBackend: config.LedgerFile, StateDir: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	assert.FileExists(t, filepath.Join(dir, TriedFileName))
	require.NoError(t, closeFn())

	store, closeFn, err = Open(config.ProbeConfig{
		LedgerBackend: config.LedgerSQLite,
		SQLitePath:    filepath.Join(dir, "state", "ledger.db"),
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, closeFn())

	_, _, err = Open(config.ProbeConfig{LedgerBackend: "etcd"}, nil)
	assert.Error(t, err)
}
