package storage

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-floor/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.StorageEntry{}))
	return db
}

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, KeyUser, `{"id":"u1"}`))
	require.NoError(t, store.Set(ctx, KeyBranchID, "b1"))

	val, err := store.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u1"}`, val)

	// overwrite keeps a single value
	require.NoError(t, store.Set(ctx, KeyBranchID, "b2"))
	val, err = store.Get(ctx, KeyBranchID)
	require.NoError(t, err)
	assert.Equal(t, "b2", val)

	require.NoError(t, store.Delete(ctx, KeyUser, KeyBranchID, KeyRestaurantID))
	_, err = store.Get(ctx, KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, KeyBranchID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestGormStore(t *testing.T) {
	exerciseStore(t, NewGormStore(setupTestDB(t)))
}

func TestGormStore_Persists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewGormStore(db).Set(ctx, KeyAccessToken, "tok"))

	// a fresh store over the same database sees the value
	val, err := NewGormStore(db).Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", val)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	exerciseStore(t, NewRedisStore(client, "floor-test:"+uuid.NewString()+":"))
}
