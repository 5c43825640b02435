package memory

import (
	"context"
	"sort"
	"time"

	"checkout-service/internal/models"
)

// CreateOrder creates a new order. The idempotency key is unique, mirroring
// the index on orders.idempotency_key.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.IdempotencyKey != "" {
		if _, exists := s.ordersByKey[order.IdempotencyKey]; exists {
			return models.ErrDuplicateOrder
		}
	}
	order.ID = s.nextID("orders")
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	clone := *order
	s.orders[order.ID] = &clone
	if order.IdempotencyKey != "" {
		s.ordersByKey[order.IdempotencyKey] = order.ID
	}
	return nil
}

// CreateOrderItems creates the line items for an order
func (s *Store) CreateOrderItems(ctx context.Context, orderID int64, items []models.OrderItem) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		items[i].ID = s.nextID("order_items")
		items[i].OrderID = orderID
	}
	s.orderItems[orderID] = append(s.orderItems[orderID], items...)
	return nil
}

// DeleteOrder removes an order and its items (checkout compensation)
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if order, ok := s.orders[orderID]; ok && order.IdempotencyKey != "" {
		delete(s.ordersByKey, order.IdempotencyKey)
	}
	delete(s.orders, orderID)
	delete(s.orderItems, orderID)
	return nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ordersByKey[key]
	if !ok {
		return nil, nil
	}
	clone := *s.orders[id]
	return &clone, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.OrderItem, len(s.orderItems[orderID]))
	copy(items, s.orderItems[orderID])
	return items, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, 0)
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}
