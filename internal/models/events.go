package models

import "time"

// Event types
const (
	EventTypeOrderCreated        = "ORDER_CREATED"
	EventTypeCouponIssued        = "COUPON_ISSUED"
	EventTypeReservationsExpired = "RESERVATIONS_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a checkout completes
type OrderCreatedEvent struct {
	BaseEvent
	OrderID        int64           `json:"order_id"`
	UserID         int64           `json:"user_id"`
	Subtotal       int64           `json:"subtotal"`
	DiscountAmount int64           `json:"discount_amount"`
	TotalAmount    int64           `json:"total_amount"`
	UserCouponID   *int64          `json:"user_coupon_id,omitempty"`
	Items          []OrderItemData `json:"items"`
}

// CouponIssuedEvent published when a ticket is successfully claimed
type CouponIssuedEvent struct {
	BaseEvent
	CouponID     int64 `json:"coupon_id"`
	UserID       int64 `json:"user_id"`
	TicketID     int64 `json:"ticket_id"`
	UserCouponID int64 `json:"user_coupon_id"`
}

// ReservationsExpiredEvent published by the sweeper after physically
// reclaiming stale holds
type ReservationsExpiredEvent struct {
	BaseEvent
	Count int64 `json:"count"`
}

// OrderItemData represents line data in events
type OrderItemData struct {
	ProductOptionID int64 `json:"product_option_id"`
	Quantity        int   `json:"quantity"`
	UnitPrice       int64 `json:"unit_price"`
}
