package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 15 * time.Minute

func TestReserveCart(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 20)

	_, err := carts.AddItem(ctx, user.ID, opt.ID, 5)
	require.NoError(t, err)

	lines, err := svc.ReserveCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	r := lines[0].Reservation
	assert.Equal(t, models.ReservationStatusReserved, r.Status)
	assert.Equal(t, 5, r.Quantity)
	assert.True(t, r.ExpiresAt.After(time.Now()))
	assert.Equal(t, 15, lines[0].AvailableStock, "20 in stock minus the new 5-unit hold")

	// The physical stock counter is untouched by a hold.
	stock, err := mem.GetStock(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, stock.Quantity)
}

func TestReserveCartEmpty(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")

	_, err := svc.ReserveCart(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrCartEmpty)
}

func TestReserveCartInsufficientAvailability(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	opt := mem.SeedProductOption("black / M", 15000, 10)

	first := mem.SeedUser("alice")
	_, err := carts.AddItem(ctx, first.ID, opt.ID, 8)
	require.NoError(t, err)
	_, err = svc.ReserveCart(ctx, first.ID)
	require.NoError(t, err)

	// 8 of 10 units are held; a 3-unit request cannot be covered even
	// though the stock counter still reads 10.
	second := mem.SeedUser("bob")
	_, err = carts.AddItem(ctx, second.ID, opt.ID, 3)
	require.NoError(t, err)
	_, err = svc.ReserveCart(ctx, second.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientAvailableStock)

	// A 2-unit request fits the remainder.
	third := mem.SeedUser("carol")
	_, err = carts.AddItem(ctx, third.ID, opt.ID, 2)
	require.NoError(t, err)
	_, err = svc.ReserveCart(ctx, third.ID)
	assert.NoError(t, err)
}

func TestReserveCartDuplicateHold(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 20)

	_, err := carts.AddItem(ctx, user.ID, opt.ID, 5)
	require.NoError(t, err)

	_, err = svc.ReserveCart(ctx, user.ID)
	require.NoError(t, err)

	_, err = svc.ReserveCart(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrDuplicateReservation)
}

func TestReserveCartAllOrNothing(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")
	plenty := mem.SeedProductOption("black / M", 15000, 100)
	scarce := mem.SeedProductOption("black / S", 15000, 1)

	_, err := carts.AddItem(ctx, user.ID, plenty.ID, 5)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, user.ID, scarce.ID, 3)
	require.NoError(t, err)

	_, err = svc.ReserveCart(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientAvailableStock)

	// The coverable line must not have been held.
	available, err := mem.AvailableStock(ctx, plenty.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100, available)
}

// Concurrent single-line reserves against 10 units, 3 each: at most three
// shoppers can hold simultaneously and held quantity never exceeds stock.
func TestReserveCartConcurrentNoOverselling(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	opt := mem.SeedProductOption("black / M", 15000, 10)

	const shoppers = 12
	userIDs := make([]int64, shoppers)
	for i := 0; i < shoppers; i++ {
		userIDs[i] = mem.SeedUser("shopper").ID
		_, err := carts.AddItem(ctx, userIDs[i], opt.ID, 3)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make([]error, shoppers)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.ReserveCart(ctx, userIDs[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInsufficientAvailableStock)
		}
	}
	assert.Equal(t, 3, succeeded)

	available, err := mem.AvailableStock(ctx, opt.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, available)
	assert.GreaterOrEqual(t, available, 0)
}

// A hold stops counting against availability the moment its deadline
// passes, with no cleanup having run.
func TestExpiredHoldFreesAvailability(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 10)

	now := time.Now()
	mem.SeedReservation(models.InventoryReservation{
		ProductOptionID: opt.ID,
		UserID:          user.ID,
		Quantity:        8,
		Status:          models.ReservationStatusReserved,
		ReservedAt:      now.Add(-20 * time.Minute),
		ExpiresAt:       now.Add(-5 * time.Minute),
	})

	available, err := mem.AvailableStock(ctx, opt.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	// A full-stock reserve goes through over the stale hold.
	buyer := mem.SeedUser("bob")
	_, err = carts.AddItem(ctx, buyer.ID, opt.ID, 10)
	require.NoError(t, err)
	_, err = svc.ReserveCart(ctx, buyer.ID)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 20)
	now := time.Now()

	_, err := carts.AddItem(ctx, user.ID, opt.ID, 5)
	require.NoError(t, err)
	items, err := mem.GetCartItems(ctx, user.ID)
	require.NoError(t, err)

	t.Run("no hold", func(t *testing.T) {
		_, err := svc.Validate(ctx, user.ID, items, now)
		assert.ErrorIs(t, err, models.ErrReservationNotFound)
	})

	lines, err := svc.ReserveCart(ctx, user.ID)
	require.NoError(t, err)

	t.Run("covering hold", func(t *testing.T) {
		matched, err := svc.Validate(ctx, user.ID, items, now)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, lines[0].Reservation.ID, matched[0].ID)
	})

	t.Run("hold smaller than cart line", func(t *testing.T) {
		grown := []models.CartItem{{UserID: user.ID, ProductOptionID: opt.ID, Quantity: 6}}
		_, err := svc.Validate(ctx, user.ID, grown, now)
		assert.ErrorIs(t, err, models.ErrReservationNotFound)
	})

	t.Run("expired hold", func(t *testing.T) {
		_, err := svc.Validate(ctx, user.ID, items, now.Add(testTTL+time.Minute))
		assert.ErrorIs(t, err, models.ErrReservationExpired)
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	carts := NewCartService(mem)
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 10)

	_, err := carts.AddItem(ctx, user.ID, opt.ID, 8)
	require.NoError(t, err)
	_, err = svc.ReserveCart(ctx, user.ID)
	require.NoError(t, err)

	released, err := svc.Release(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	available, err := mem.AvailableStock(ctx, opt.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	// Releasing again is a no-op.
	released, err = svc.Release(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	svc := NewReservationService(mem, nil, testTTL)

	user := mem.SeedUser("alice")
	opt := mem.SeedProductOption("black / M", 15000, 10)
	now := time.Now()

	mem.SeedReservation(models.InventoryReservation{
		ProductOptionID: opt.ID,
		UserID:          user.ID,
		Quantity:        3,
		Status:          models.ReservationStatusReserved,
		ReservedAt:      now.Add(-time.Hour),
		ExpiresAt:       now.Add(-30 * time.Minute),
	})
	live := mem.SeedReservation(models.InventoryReservation{
		ProductOptionID: opt.ID,
		UserID:          mem.SeedUser("bob").ID,
		Quantity:        2,
		Status:          models.ReservationStatusReserved,
		ReservedAt:      now,
		ExpiresAt:       now.Add(10 * time.Minute),
	})

	expired, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	// The live hold survives the sweep.
	reserved, err := mem.ReservedByUser(ctx, live.UserID)
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, live.ID, reserved[0].ID)

	// Idempotent: a second sweep finds nothing.
	expired, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}
