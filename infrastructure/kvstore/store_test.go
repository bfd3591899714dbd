package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/core/database"
	"github.com/AzielCF/az-tgclean/domains/kvstore"
	"github.com/AzielCF/az-tgclean/infrastructure/valkey"
)

// exerciseStore runs the same contract against every backend.
func exerciseStore(t *testing.T, store kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "@missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "@avatar_cache:1", `{"chatId":"1"}`))
	require.NoError(t, store.Set(ctx, "@avatar_cache:2", "two"))
	require.NoError(t, store.Set(ctx, "@avatar_cache:1", "one"))

	v, found, err := store.Get(ctx, "@avatar_cache:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "one", v, "Set must upsert")

	values, err := store.MultiGet(ctx, []string{"@avatar_cache:1", "@avatar_cache:2", "@avatar_cache:3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"@avatar_cache:1": "one", "@avatar_cache:2": "two"}, values)

	require.NoError(t, store.Remove(ctx, "@avatar_cache:1"))
	require.NoError(t, store.Remove(ctx, "@avatar_cache:1"), "removing a missing key is not an error")
	_, found, err = store.Get(ctx, "@avatar_cache:1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "@a", "x"))
	require.NoError(t, store.MultiRemove(ctx, []string{"@a", "@avatar_cache:2", "@never"}))
	require.NoError(t, store.MultiRemove(ctx, nil))
	values, err = store.MultiGet(ctx, []string{"@a", "@avatar_cache:2"})
	require.NoError(t, err)
	assert.Empty(t, values)

	empty, err := store.MultiGet(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_Contract(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)
	assert.Equal(t, 0, store.Len())
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Name:   filepath.Join(t.TempDir(), "kv.db"),
		},
	}
}

func TestGormStore_Contract(t *testing.T) {
	db, err := database.NewGorm(testConfig(t))
	require.NoError(t, err)

	store := NewGormStore(db)
	require.NoError(t, store.InitSchema(context.Background()))
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLStore_Contract(t *testing.T) {
	cfg := testConfig(t)
	db, err := database.NewSQL(cfg)
	require.NoError(t, err)

	store := NewSQLStore(db, cfg.Database.Driver)
	require.NoError(t, store.Init(context.Background()))
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLStore_Placeholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", NewSQLStore(nil, "sqlite").placeholders(3))
	assert.Equal(t, "$1, $2, $3", NewSQLStore(nil, "postgres").placeholders(3))
}

func TestValkeyStore_Contract(t *testing.T) {
	vk, err := valkey.NewClient(valkey.Config{Address: "localhost:6379", KeyPrefix: "tgclean_test"})
	if err != nil {
		t.Skip("No valkey")
	}
	store := NewValkeyStore(vk)
	defer store.Close()

	exerciseStore(t, store)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Backend = BackendGorm
	ctx := context.Background()

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "@auth_token", "tok"))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	v, found, err := reopened.Get(ctx, "@auth_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tok", v)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Backend = "etcd"
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
