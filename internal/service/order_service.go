package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type orderStore interface {
	store.CatalogStore
	store.StockStore
	store.BalanceStore
	store.CartStore
	store.CouponStore
	store.OrderStore
}

// OrderService orchestrates checkout: it validates preconditions, consumes
// the shopper's reservation, deducts stock and balance, redeems the coupon
// and persists the order as one logical unit. Every mutating step is an
// atomic conditional primitive; a failure mid-flight compensates the steps
// already applied in reverse order, so a failed checkout leaves every
// ledger as it found it.
type OrderService struct {
	store        orderStore
	coupons      *CouponService
	reservations *ReservationService
	publisher    *broker.EventPublisher
	logger       *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store orderStore,
	coupons *CouponService,
	reservations *ReservationService,
	publisher *broker.EventPublisher,
) *OrderService {
	return &OrderService{
		store:        store,
		coupons:      coupons,
		reservations: reservations,
		publisher:    publisher,
		logger:       util.NamedLogger("order"),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	UserID          int64  `json:"user_id" binding:"required"`
	UserCouponID    *int64 `json:"user_coupon_id,omitempty"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID        int64              `json:"order_id"`
	Status         string             `json:"status"`
	Subtotal       int64              `json:"subtotal"`
	DiscountAmount int64              `json:"discount_amount"`
	TotalAmount    int64              `json:"total_amount"`
	UserCouponID   *int64             `json:"user_coupon_id,omitempty"`
	Items          []models.OrderItem `json:"items"`
}

// CreateOrder runs the checkout for the user's current cart
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreationLatency.Observe(time.Since(start).Seconds())
	}()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		return s.responseFor(ctx, existing)
	}

	// Read-only validations happen before the first mutation.
	if _, err := s.store.GetUserByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	cartItems, err := s.store.GetCartItems(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(cartItems) == 0 {
		util.OrdersFailedTotal.WithLabelValues("cart_empty").Inc()
		return nil, models.ErrCartEmpty
	}

	options, err := s.resolveOptions(ctx, cartItems)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	subtotal := orderSubtotal(cartItems, options)

	now := time.Now()
	var userCoupon *models.UserCoupon
	var discount int64
	if req.UserCouponID != nil {
		userCoupon, _, discount, err = s.coupons.ResolveRedemption(ctx, *req.UserCouponID, req.UserID, subtotal, now)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("coupon_rejected").Inc()
			return nil, err
		}
	}
	total := subtotal - discount

	reservations, err := s.reservations.Validate(ctx, req.UserID, cartItems, now)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("reservation_invalid").Inc()
		return nil, err
	}

	order, items, err := s.commitOrder(ctx, req, cartItems, options, reservations, userCoupon, subtotal, discount, total)
	if err != nil {
		// A concurrent request with the same key won the insert; after the
		// unwind, answer with its order instead of an error.
		if errors.Is(err, models.ErrDuplicateOrder) {
			winner, ferr := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if ferr == nil && winner != nil {
				return s.responseFor(ctx, winner)
			}
		}
		util.RecordSpanError(span, err)
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount))

	s.publishOrderCreated(ctx, order, items)

	return &CreateOrderResponse{
		OrderID:        order.ID,
		Status:         order.Status,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		UserCouponID:   order.UserCouponID,
		Items:          items,
	}, nil
}

// commitOrder runs the mutating steps of the checkout. Compensation is
// cumulative: each step that succeeds pushes its inverse, and the first
// failure unwinds everything already applied before surfacing the error.
func (s *OrderService) commitOrder(
	ctx context.Context,
	req *CreateOrderRequest,
	cartItems []models.CartItem,
	options map[int64]models.ProductOption,
	reservations []models.InventoryReservation,
	userCoupon *models.UserCoupon,
	subtotal, discount, total int64,
) (*models.Order, []models.OrderItem, error) {
	var undo []func()
	unwind := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	// Deduct stock per line; the conditional update makes overselling
	// impossible regardless of interleaving.
	for _, item := range cartItems {
		item := item
		if err := s.store.DecrementStock(ctx, item.ProductOptionID, item.Quantity); err != nil {
			unwind()
			if errors.Is(err, models.ErrInsufficientStock) {
				util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
				return nil, nil, err
			}
			return nil, nil, fmt.Errorf("failed to deduct stock: %w", err)
		}
		undo = append(undo, func() {
			if err := s.store.IncrementStock(ctx, item.ProductOptionID, item.Quantity); err != nil {
				s.logger.Error("Failed to compensate stock",
					zap.Int64("product_option_id", item.ProductOptionID),
					zap.Error(err))
			}
		})
	}

	order := &models.Order{
		UserID:          req.UserID,
		Status:          models.OrderStatusCreated,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		TotalAmount:     total,
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if userCoupon != nil {
		order.UserCouponID = &userCoupon.ID
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		unwind()
		if errors.Is(err, models.ErrDuplicateOrder) {
			return nil, nil, err
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}
	undo = append(undo, func() {
		if err := s.store.DeleteOrder(ctx, order.ID); err != nil {
			s.logger.Error("Failed to compensate order", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	})

	items := make([]models.OrderItem, len(cartItems))
	for i, item := range cartItems {
		items[i] = models.OrderItem{
			ProductOptionID: item.ProductOptionID,
			Quantity:        item.Quantity,
			UnitPrice:       options[item.ProductOptionID].Price,
		}
	}
	if err := s.store.CreateOrderItems(ctx, order.ID, items); err != nil {
		unwind()
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, nil, fmt.Errorf("failed to create order items: %w", err)
	}

	if err := s.store.DecrementBalance(ctx, req.UserID, total); err != nil {
		unwind()
		if errors.Is(err, models.ErrInsufficientBalance) {
			util.OrdersFailedTotal.WithLabelValues("insufficient_balance").Inc()
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to deduct balance: %w", err)
	}
	undo = append(undo, func() {
		if err := s.store.IncrementBalance(ctx, req.UserID, total); err != nil {
			s.logger.Error("Failed to compensate balance", zap.Int64("user_id", req.UserID), zap.Error(err))
		}
	})

	// The USED flip is the contended one-shot step, so it runs before the
	// guaranteed ones: a coupon raced onto another order unwinds cleanly.
	if userCoupon != nil {
		if err := s.store.MarkUserCouponUsed(ctx, userCoupon.ID, order.ID, time.Now()); err != nil {
			unwind()
			if errors.Is(err, models.ErrCouponAlreadyUsed) {
				util.OrdersFailedTotal.WithLabelValues("coupon_rejected").Inc()
				return nil, nil, err
			}
			return nil, nil, fmt.Errorf("failed to redeem coupon: %w", err)
		}
		undo = append(undo, func() {
			if err := s.store.RestoreUserCoupon(ctx, userCoupon.ID); err != nil {
				s.logger.Error("Failed to compensate coupon", zap.Int64("user_coupon_id", userCoupon.ID), zap.Error(err))
			}
		})
	}

	// Past this point the checkout cannot fail for resource reasons. The
	// confirm can still hit an infrastructure error, so it runs while the
	// undo stack is intact; the cart clear has no inverse and comes after.
	reservationIDs := make([]int64, len(reservations))
	for i, r := range reservations {
		reservationIDs[i] = r.ID
	}
	if err := s.reservations.Confirm(ctx, reservationIDs); err != nil {
		unwind()
		return nil, nil, fmt.Errorf("failed to confirm reservations: %w", err)
	}

	if err := s.store.ClearCart(ctx, req.UserID); err != nil {
		s.logger.Error("Failed to clear cart after checkout", zap.Int64("user_id", req.UserID), zap.Error(err))
	}

	if err := s.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusConfirmed); err != nil {
		s.logger.Error("Failed to confirm order", zap.Int64("order_id", order.ID), zap.Error(err))
	} else {
		order.Status = models.OrderStatusConfirmed
	}

	return order, items, nil
}

// resolveOptions loads and checks every product option referenced by the cart
func (s *OrderService) resolveOptions(ctx context.Context, items []models.CartItem) (map[int64]models.ProductOption, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductOptionID
	}

	options, err := s.store.GetProductOptionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(options) != len(items) {
		return nil, models.ErrProductOptionNotFound
	}

	byID := make(map[int64]models.ProductOption, len(options))
	for _, opt := range options {
		if !opt.IsActive {
			return nil, models.ErrProductOptionInactive
		}
		byID[opt.ID] = opt
	}
	return byID, nil
}

// orderSubtotal sums price times quantity over the cart
func orderSubtotal(items []models.CartItem, options map[int64]models.ProductOption) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += options[item.ProductOptionID].Price * int64(item.Quantity)
	}
	return subtotal
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.publisher == nil {
		return
	}

	eventItems := make([]models.OrderItemData, len(items))
	for i, item := range items {
		eventItems[i] = models.OrderItemData{
			ProductOptionID: item.ProductOptionID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:        order.ID,
		UserID:         order.UserID,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		UserCouponID:   order.UserCouponID,
		Items:          eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *OrderService) responseFor(ctx context.Context, order *models.Order) (*CreateOrderResponse, error) {
	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &CreateOrderResponse{
		OrderID:        order.ID,
		Status:         order.Status,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		UserCouponID:   order.UserCouponID,
		Items:          items,
	}, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// GetOrdersByUser retrieves a user's orders
func (s *OrderService) GetOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}
