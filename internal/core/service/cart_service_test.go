package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port/porttest"
)

func TestCartService_RoundTrip(t *testing.T) {
	cache := porttest.NewCache()
	svc := NewCartService(cache, time.Second)
	ctx := context.Background()

	store, err := svc.Load(ctx, "sess")
	require.NoError(t, err)
	assert.Zero(t, store.Len())

	store.Upsert("P", 9, 2)
	store.Upsert("Q", 8, 1)
	require.NoError(t, svc.Save(ctx, "sess", store))

	loaded, err := svc.Load(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, []domain.CartEntry{{ProductID: "P", Size: 9, Count: 2}, {ProductID: "Q", Size: 8, Count: 1}}, loaded.Entries())

	loaded.Clear()
	require.NoError(t, svc.Save(ctx, "sess", loaded))
	_, ok := cache.Carts["sess"]
	assert.False(t, ok, "empty cart should not be stored")
}

func TestCartService_RequiresSession(t *testing.T) {
	svc := NewCartService(porttest.NewCache(), time.Second)

	_, err := svc.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
