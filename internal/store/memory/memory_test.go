package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Many concurrent decrements against one stock row: the counter never goes
// negative and exactly quantity/step of them succeed.
func TestDecrementStockConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	opt := s.SeedProductOption("black / M", 1000, 50)

	const workers = 100
	var wg sync.WaitGroup
	var succeeded int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.DecrementStock(ctx, opt.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, models.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), succeeded)

	stock, err := s.GetStock(ctx, opt.ID)
	require.NoError(t, err)
	assert.Zero(t, stock.Quantity)
}

func TestDecrementBalanceConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user := s.SeedUser("alice")
	s.SeedBalance(user.ID, 1000)

	const workers = 30
	var wg sync.WaitGroup
	results := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.DecrementBalance(ctx, user.ID, 100)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 10, succeeded)

	balance, err := s.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance.Amount)
}

// Mixed writers on distinct resources running at once: stock rows, balances
// and cart lines each land on their exact final value, with snapshot reads
// interleaved throughout.
func TestConcurrentDistinctResources(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	const users = 8
	const rounds = 25

	opts := make([]*models.ProductOption, users)
	userIDs := make([]int64, users)
	for i := 0; i < users; i++ {
		opts[i] = s.SeedProductOption("black / M", 1000, rounds)
		u := s.SeedUser("shopper")
		s.SeedBalance(u.ID, rounds*10)
		userIDs[i] = u.ID
	}

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				assert.NoError(t, s.DecrementStock(ctx, opts[i].ID, 1))
				assert.NoError(t, s.DecrementBalance(ctx, userIDs[i], 10))
				_, _, err := s.UpsertCartItem(ctx, userIDs[i], opts[i].ID, 1)
				assert.NoError(t, err)
				_, err = s.GetCartItems(ctx, userIDs[i])
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < users; i++ {
		stock, err := s.GetStock(ctx, opts[i].ID)
		require.NoError(t, err)
		assert.Zero(t, stock.Quantity)

		balance, err := s.GetBalance(ctx, userIDs[i])
		require.NoError(t, err)
		assert.Zero(t, balance.Amount)

		items, err := s.GetCartItems(ctx, userIDs[i])
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, rounds, items[0].Quantity)
	}
}

func TestDecrementStockRejectsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	opt := s.SeedProductOption("black / M", 1000, 3)

	err := s.DecrementStock(ctx, opt.ID, 5)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	stock, err := s.GetStock(ctx, opt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock.Quantity)
}

// Multi-line reserves with overlapping option sets running concurrently:
// the sorted lock order means they finish rather than deadlock, and held
// quantity stays within stock on every option.
func TestReserveConcurrentOverlappingLines(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := s.SeedProductOption("black / M", 1000, 10)
	b := s.SeedProductOption("black / S", 1000, 10)

	const shoppers = 10
	var wg sync.WaitGroup

	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := s.SeedUser("shopper")
			now := time.Now()
			items := []models.ReservationRequest{
				{ProductOptionID: a.ID, Quantity: 3},
				{ProductOptionID: b.ID, Quantity: 3},
			}
			if i%2 == 0 {
				items[0], items[1] = items[1], items[0]
			}
			_, _ = s.Reserve(ctx, u.ID, items, now, now.Add(15*time.Minute))
		}(i)
	}
	wg.Wait()

	now := time.Now()
	for _, id := range []int64{a.ID, b.ID} {
		available, err := s.AvailableStock(ctx, id, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, available, 0)
		assert.LessOrEqual(t, available, 10)
	}
}

func TestIssueTicketExhaustsPoolExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	coupon := s.SeedCoupon(models.Coupon{
		Name:          "flash",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 500,
		TotalQuantity: 3,
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(time.Hour),
	})

	seen := make(map[int64]bool)
	for i := 0; i < 3; i++ {
		u := s.SeedUser("shopper")
		uc, err := s.IssueTicket(ctx, coupon.ID, u.ID, now)
		require.NoError(t, err)
		assert.False(t, seen[uc.TicketID])
		seen[uc.TicketID] = true
	}

	u := s.SeedUser("latecomer")
	_, err := s.IssueTicket(ctx, coupon.ID, u.ID, now)
	assert.ErrorIs(t, err, models.ErrCouponOutOfStock)
}

func TestMarkUserCouponUsedOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	coupon := s.SeedCoupon(models.Coupon{
		Name:          "flash",
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 500,
		TotalQuantity: 1,
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(time.Hour),
	})
	user := s.SeedUser("alice")
	uc, err := s.IssueTicket(ctx, coupon.ID, user.ID, now)
	require.NoError(t, err)

	// Concurrent USED flips: exactly one order wins the coupon.
	const orders = 10
	var wg sync.WaitGroup
	results := make([]error, orders)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.MarkUserCouponUsed(ctx, uc.ID, int64(100+i), now)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrCouponAlreadyUsed)
		}
	}
	assert.Equal(t, 1, succeeded)

	// Restore reopens it for exactly one more flip.
	require.NoError(t, s.RestoreUserCoupon(ctx, uc.ID))
	assert.NoError(t, s.MarkUserCouponUsed(ctx, uc.ID, 999, now))
}

func TestUpsertCartItemBounds(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	user := s.SeedUser("alice")
	opt := s.SeedProductOption("black / M", 1000, 10)

	_, _, err := s.UpsertCartItem(ctx, user.ID, opt.ID, 0)
	assert.ErrorIs(t, err, models.ErrCartCapExceeded)

	_, _, err = s.UpsertCartItem(ctx, user.ID, opt.ID, models.CartMaxQuantity+1)
	assert.ErrorIs(t, err, models.ErrCartCapExceeded)

	item, isNew, err := s.UpsertCartItem(ctx, user.ID, opt.ID, models.CartMaxQuantity)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, models.CartMaxQuantity, item.Quantity)
}

func TestEventProcessing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	processed, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeOrderCreated))

	processed, err = s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)

	// Marking twice is harmless.
	assert.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeOrderCreated))
}
