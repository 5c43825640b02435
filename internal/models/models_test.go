package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCouponDiscount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal int64
		want     int64
	}{
		{
			name:     "percentage",
			coupon:   Coupon{DiscountType: DiscountTypePercentage, DiscountValue: 10},
			subtotal: 20000,
			want:     2000,
		},
		{
			name:     "percentage capped",
			coupon:   Coupon{DiscountType: DiscountTypePercentage, DiscountValue: 10, MaxDiscountAmount: 1500},
			subtotal: 20000,
			want:     1500,
		},
		{
			name:     "percentage uncapped when cap unset",
			coupon:   Coupon{DiscountType: DiscountTypePercentage, DiscountValue: 50},
			subtotal: 20000,
			want:     10000,
		},
		{
			name:     "fixed",
			coupon:   Coupon{DiscountType: DiscountTypeFixed, DiscountValue: 3000},
			subtotal: 20000,
			want:     3000,
		},
		{
			name:     "fixed never exceeds subtotal",
			coupon:   Coupon{DiscountType: DiscountTypeFixed, DiscountValue: 3000},
			subtotal: 1000,
			want:     1000,
		},
		{
			name:     "unknown type discounts nothing",
			coupon:   Coupon{DiscountType: "MYSTERY", DiscountValue: 3000},
			subtotal: 1000,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.Discount(tt.subtotal))
		})
	}
}

func TestCouponIsWithinWindow(t *testing.T) {
	now := time.Now()
	c := Coupon{StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}

	assert.True(t, c.IsWithinWindow(now))
	assert.True(t, c.IsWithinWindow(c.StartsAt), "window opens at starts_at inclusive")
	assert.False(t, c.IsWithinWindow(c.EndsAt), "window closes at ends_at exclusive")
	assert.False(t, c.IsWithinWindow(now.Add(-2*time.Hour)))
	assert.False(t, c.IsWithinWindow(now.Add(2*time.Hour)))
}

func TestReservationIsActive(t *testing.T) {
	now := time.Now()

	live := InventoryReservation{Status: ReservationStatusReserved, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, live.IsActive(now))

	stale := InventoryReservation{Status: ReservationStatusReserved, ExpiresAt: now.Add(-time.Second)}
	assert.False(t, stale.IsActive(now), "a hold stops counting the moment it expires")

	exactly := InventoryReservation{Status: ReservationStatusReserved, ExpiresAt: now}
	assert.False(t, exactly.IsActive(now))

	confirmed := InventoryReservation{Status: ReservationStatusConfirmed, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, confirmed.IsActive(now), "confirmed units already left the stock counter")

	released := InventoryReservation{Status: ReservationStatusReleased, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, released.IsActive(now))
}

func TestErrCode(t *testing.T) {
	assert.Equal(t, "COUPON_OUT_OF_STOCK", ErrCode(ErrCouponOutOfStock))
	assert.Equal(t, "CART_CAP_EXCEEDED", ErrCode(ErrCartCapExceeded))
	assert.Empty(t, ErrCode(assert.AnError))
}
