package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

// storeContract exercises the behaviour every backend must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, models.APIKeySetting)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, models.APIKeySetting, "sk-first"))
	v, ok, err := store.Get(ctx, models.APIKeySetting)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-first", v)

	require.NoError(t, store.Set(ctx, models.APIKeySetting, "sk-second"))
	require.NoError(t, store.Set(ctx, models.APIKeySetting, "sk-second"))
	v, _, err = store.Get(ctx, models.APIKeySetting)
	require.NoError(t, err)
	assert.Equal(t, "sk-second", v)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	store := NewFileStore(path)
	storeContract(t, store)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A fresh store sees the persisted value.
	v, ok, err := NewFileStore(path).Get(context.Background(), models.APIKeySetting)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-second", v)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openaiApiKey: [unterminated"), 0o600))

	_, _, err := NewFileStore(path).Get(context.Background(), models.APIKeySetting)
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, config.DefaultRedisKey)
	require.NoError(t, err)
	defer store.Close()

	storeContract(t, store)
	assert.Equal(t, "sk-second", mr.HGet(config.DefaultRedisKey, models.APIKeySetting))
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), addr, "", 0, config.DefaultRedisKey)
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewPostgresStoreFromDB(sqldb, false)
	ctx := context.Background()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "settings"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Init(ctx))

	mock.ExpectQuery(`SELECT .* FROM "settings" AS "s" WHERE \(key = 'openaiApiKey'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}))
	_, ok, err := store.Get(ctx, models.APIKeySetting)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(`INSERT INTO "settings" .*ON CONFLICT \(key\) DO UPDATE SET value = EXCLUDED.value`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Set(ctx, models.APIKeySetting, "sk-1"))

	mock.ExpectQuery(`SELECT .* FROM "settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow(models.APIKeySetting, "sk-1"))
	v, ok, err := store.Get(ctx, models.APIKeySetting)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-1", v)

	mock.ExpectClose()
	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.SettingsConfig{Backend: config.BackendFile, Path: filepath.Join(t.TempDir(), "s.yaml")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = New(ctx, config.SettingsConfig{Backend: config.BackendSQLite, Path: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = New(ctx, config.SettingsConfig{Backend: "etcd"})
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk gone")
}
func (failingStore) Set(context.Context, string, string) error { return errors.New("disk gone") }
func (failingStore) Close() error                              { return nil }

func TestSettingsAPIKey(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewFileStore(filepath.Join(t.TempDir(), "s.yaml")))

	_, ok, err := s.GetAPIKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetAPIKey(ctx, ""))
	_, ok, err = s.GetAPIKey(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty credential counts as absent")

	require.NoError(t, s.SetAPIKey(ctx, "not-validated"))
	key, ok, err := s.GetAPIKey(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "not-validated", key)
}

func TestSettingsWrapsStorageErrors(t *testing.T) {
	s := NewSettings(failingStore{})

	_, _, err := s.GetAPIKey(context.Background())
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(s.SetAPIKey(context.Background(), "k")))
}
