package memory

import (
	"context"
	"sort"
	"time"

	"checkout-service/internal/models"
)

// UpsertCartItem inserts or increments a cart line under the user's cart
// key lock, held across the cap check and the write. An increment that
// would cross the cap is rejected whole, leaving the stored quantity
// unchanged.
func (s *Store) UpsertCartItem(ctx context.Context, userID, productOptionID int64, quantity int) (*models.CartItem, bool, error) {
	_ = ctx

	if quantity < 1 || quantity > models.CartMaxQuantity {
		return nil, false, models.ErrCartCapExceeded
	}

	unlock := s.locks.lock(cartKey(userID))
	defer unlock()

	key := pairKey(userID, productOptionID)
	now := time.Now()

	s.mu.RLock()
	item, ok := s.cartItems[key]
	var current int
	if ok {
		current = item.Quantity
	}
	s.mu.RUnlock()

	if !ok {
		item = &models.CartItem{
			UserID:          userID,
			ProductOptionID: productOptionID,
			Quantity:        quantity,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.mu.Lock()
		s.cartItems[key] = item
		s.mu.Unlock()
		clone := *item
		return &clone, true, nil
	}

	if current+quantity > models.CartMaxQuantity {
		return nil, false, models.ErrCartCapExceeded
	}

	s.mu.Lock()
	item.Quantity = current + quantity
	item.UpdatedAt = now
	clone := *item
	s.mu.Unlock()
	return &clone, false, nil
}

// GetCartItems retrieves all cart lines for a user
func (s *Store) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.CartItem, 0)
	for _, item := range s.cartItems {
		if item.UserID == userID {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductOptionID < items[j].ProductOptionID })
	return items, nil
}

// RemoveCartItem deletes one cart line
func (s *Store) RemoveCartItem(ctx context.Context, userID, productOptionID int64) error {
	_ = ctx

	unlock := s.locks.lock(cartKey(userID))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(userID, productOptionID)
	if _, ok := s.cartItems[key]; !ok {
		return models.ErrCartItemNotFound
	}
	delete(s.cartItems, key)
	return nil
}

// ClearCart removes all cart lines for a user; clearing an empty cart is a no-op
func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_ = ctx

	unlock := s.locks.lock(cartKey(userID))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range s.cartItems {
		if item.UserID == userID {
			delete(s.cartItems, key)
		}
	}
	return nil
}
