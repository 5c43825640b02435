package models

import "time"

// User represents a registered customer
type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProductOption represents a sellable variant of a product
type ProductOption struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Stock is the authoritative available-stock counter per product option
type Stock struct {
	ProductOptionID int64     `db:"product_option_id" json:"product_option_id"`
	Quantity        int       `db:"quantity" json:"quantity"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Balance is the authoritative monetary balance per user
type Balance struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Amount    int64     `db:"amount" json:"amount"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Coupon discount types
const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
)

// Coupon represents a coupon campaign with a fixed issuance quota
type Coupon struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	DiscountType      string    `db:"discount_type" json:"discount_type"`
	DiscountValue     int64     `db:"discount_value" json:"discount_value"`
	MaxDiscountAmount int64     `db:"max_discount_amount" json:"max_discount_amount"`
	MinOrderAmount    int64     `db:"min_order_amount" json:"min_order_amount"`
	TotalQuantity     int       `db:"total_quantity" json:"total_quantity"`
	StartsAt          time.Time `db:"starts_at" json:"starts_at"`
	EndsAt            time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// IsWithinWindow reports whether the coupon is claimable and redeemable at t
func (c *Coupon) IsWithinWindow(t time.Time) bool {
	return !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

// Discount computes the discount for a given order subtotal.
// Percentage discounts are capped at MaxDiscountAmount; fixed discounts
// are the literal value. Never exceeds the subtotal.
func (c *Coupon) Discount(subtotal int64) int64 {
	var d int64
	switch c.DiscountType {
	case DiscountTypePercentage:
		d = subtotal * c.DiscountValue / 100
		if c.MaxDiscountAmount > 0 && d > c.MaxDiscountAmount {
			d = c.MaxDiscountAmount
		}
	case DiscountTypeFixed:
		d = c.DiscountValue
	}
	if d > subtotal {
		d = subtotal
	}
	return d
}

// Coupon ticket statuses
const (
	TicketStatusAvailable = "AVAILABLE"
	TicketStatusIssued    = "ISSUED"
)

// CouponTicket is one unit of a coupon's issuance quota.
// A ticket transitions AVAILABLE -> ISSUED exactly once and never reverts.
type CouponTicket struct {
	ID          int64      `db:"id" json:"id"`
	CouponID    int64      `db:"coupon_id" json:"coupon_id"`
	Status      string     `db:"status" json:"status"`
	OwnerUserID *int64     `db:"owner_user_id" json:"owner_user_id,omitempty"`
	IssuedAt    *time.Time `db:"issued_at" json:"issued_at,omitempty"`
}

// User coupon statuses
const (
	UserCouponStatusIssued = "ISSUED"
	UserCouponStatusUsed   = "USED"
)

// UserCoupon records a coupon held by a user; unique per (user, coupon)
type UserCoupon struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	CouponID    int64      `db:"coupon_id" json:"coupon_id"`
	TicketID    int64      `db:"ticket_id" json:"ticket_id"`
	Status      string     `db:"status" json:"status"`
	UsedOrderID *int64     `db:"used_order_id" json:"used_order_id,omitempty"`
	UsedAt      *time.Time `db:"used_at" json:"used_at,omitempty"`
	IssuedAt    time.Time  `db:"issued_at" json:"issued_at"`
}

// Reservation statuses
const (
	ReservationStatusReserved  = "RESERVED"
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusExpired   = "EXPIRED"
	ReservationStatusReleased  = "RELEASED"
)

// InventoryReservation is a time-boxed hold on inventory units for one
// user's in-progress checkout
type InventoryReservation struct {
	ID              int64     `db:"id" json:"id"`
	ProductOptionID int64     `db:"product_option_id" json:"product_option_id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Quantity        int       `db:"quantity" json:"quantity"`
	Status          string    `db:"status" json:"status"`
	ReservedAt      time.Time `db:"reserved_at" json:"reserved_at"`
	ExpiresAt       time.Time `db:"expires_at" json:"expires_at"`
}

// IsActive reports whether the reservation still counts against available
// stock at t. Only unexpired RESERVED holds count: a CONFIRMED hold's units
// are already removed from the stock counter, and a time-expired hold stops
// counting the moment it expires, before any cleanup job runs.
func (r *InventoryReservation) IsActive(t time.Time) bool {
	return r.Status == ReservationStatusReserved && r.ExpiresAt.After(t)
}

// ReservationRequest is one requested hold line
type ReservationRequest struct {
	ProductOptionID int64 `json:"product_option_id"`
	Quantity        int   `json:"quantity"`
}

// CartMaxQuantity caps the quantity of a single cart line
const CartMaxQuantity = 999

// CartItem is a per (user, product option) quantity cell
type CartItem struct {
	UserID          int64     `db:"user_id" json:"user_id"`
	ProductOptionID int64     `db:"product_option_id" json:"product_option_id"`
	Quantity        int       `db:"quantity" json:"quantity"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusConfirmed = "CONFIRMED"
)

// Order represents a customer order with its price breakdown
type Order struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Status          string    `db:"status" json:"status"`
	Subtotal        int64     `db:"subtotal" json:"subtotal"`
	DiscountAmount  int64     `db:"discount_amount" json:"discount_amount"`
	TotalAmount     int64     `db:"total_amount" json:"total_amount"`
	UserCouponID    *int64    `db:"user_coupon_id" json:"user_coupon_id,omitempty"`
	ShippingAddress string    `db:"shipping_address" json:"shipping_address"`
	IdempotencyKey  string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem represents one line in an order
type OrderItem struct {
	ID              int64 `db:"id" json:"id"`
	OrderID         int64 `db:"order_id" json:"order_id"`
	ProductOptionID int64 `db:"product_option_id" json:"product_option_id"`
	Quantity        int   `db:"quantity" json:"quantity"`
	UnitPrice       int64 `db:"unit_price" json:"unit_price"`
}

// ProcessedEvent for idempotent event consumption
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
