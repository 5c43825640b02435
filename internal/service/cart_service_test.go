package service

import (
	"context"
	"sync"
	"testing"

	"checkout-service/internal/models"
	"checkout-service/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewCartService(mem)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 100)

	resp, err := svc.AddItem(ctx, user.ID, opt.ID, 2)
	require.NoError(t, err)
	assert.True(t, resp.IsNewItem)
	assert.Equal(t, 2, resp.Item.Quantity)

	// Second add increments the same line.
	resp, err = svc.AddItem(ctx, user.ID, opt.ID, 3)
	require.NoError(t, err)
	assert.False(t, resp.IsNewItem)
	assert.Equal(t, 5, resp.Item.Quantity)

	items, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestAddItemInactiveOption(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewCartService(mem)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("discontinued", 15000, 100)
	mem.SetProductOptionActive(opt.ID, false)

	_, err := svc.AddItem(ctx, user.ID, opt.ID, 1)
	assert.ErrorIs(t, err, models.ErrProductOptionInactive)
}

func TestAddItemCap(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewCartService(mem)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 100)

	_, err := svc.AddItem(ctx, user.ID, opt.ID, models.CartMaxQuantity)
	require.NoError(t, err)

	// The line sits exactly at the cap; any further increment is rejected
	// whole and the stored quantity does not move.
	_, err = svc.AddItem(ctx, user.ID, opt.ID, 1)
	assert.ErrorIs(t, err, models.ErrCartCapExceeded)

	items, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.CartMaxQuantity, items[0].Quantity)
}

// Five concurrent adds of 300 against a line already at 950: the final
// quantity never exceeds the cap and every accepted increment is fully
// reflected, so no increment is lost or half-applied.
func TestAddItemConcurrentNearCap(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewCartService(mem)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 100)

	_, err := svc.AddItem(ctx, user.ID, opt.ID, 950)
	require.NoError(t, err)

	const writers = 5
	var wg sync.WaitGroup
	results := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.AddItem(ctx, user.ID, opt.ID, 300)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, models.ErrCartCapExceeded)
		}
	}
	// 950 + 300 already crosses 999, so every writer must lose.
	assert.Zero(t, accepted)

	items, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 950, items[0].Quantity)
}

// Concurrent small increments on one line: all are accepted and the final
// quantity is their exact sum.
func TestAddItemConcurrentNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewCartService(mem)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 100)

	const writers = 50
	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, user.ID, opt.ID, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, writers*2, items[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewCartService(mem)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 100)

	_, err := svc.AddItem(ctx, user.ID, opt.ID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, user.ID, opt.ID))

	items, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = svc.RemoveItem(ctx, user.ID, opt.ID)
	assert.ErrorIs(t, err, models.ErrCartItemNotFound)
}
