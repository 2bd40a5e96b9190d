package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

func newTestCache(t *testing.T) *RedisCache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client)
}

func TestRedisCache_SetGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cart := &domain.Cart{
		UserID: "user-1",
		Items: []domain.CartItem{
			{ProductID: 1, Quantity: 2, AddedAt: time.Now().UTC()},
		},
	}

	require.NoError(t, cache.Set(ctx, "user-1", cart))

	got, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	require.Len(t, got.Items, 1)
	assert.EqualValues(t, 2, got.Items[0].Quantity)
}

func TestRedisCache_Miss(t *testing.T) {
	cache := newTestCache(t)

	_, err := cache.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", &domain.Cart{UserID: "user-1"}))
	require.NoError(t, cache.Delete(ctx, "user-1"))

	_, err := cache.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
