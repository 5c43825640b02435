package memory

import (
	"context"
	"time"

	"checkout-service/internal/models"
)

// GetStock retrieves the stock counter for a product option
func (s *Store) GetStock(ctx context.Context, productOptionID int64) (*models.Stock, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	stock, ok := s.stocks[productOptionID]
	if !ok {
		return nil, models.ErrStockNotFound
	}
	clone := *stock
	return &clone, nil
}

// DecrementStock deducts quantity under the stock row's key lock so
// concurrent decrements of the same row serialize and none can pass a
// stale check. Decrements of other rows only contend on the brief map
// accesses.
func (s *Store) DecrementStock(ctx context.Context, productOptionID int64, quantity int) error {
	_ = ctx

	unlock := s.locks.lock(stockKey(productOptionID))
	defer unlock()

	s.mu.RLock()
	stock, ok := s.stocks[productOptionID]
	var current int
	if ok {
		current = stock.Quantity
	}
	s.mu.RUnlock()

	if !ok {
		return models.ErrStockNotFound
	}
	if current < quantity {
		return models.ErrInsufficientStock
	}

	s.mu.Lock()
	stock.Quantity = current - quantity
	stock.UpdatedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// IncrementStock returns quantity to a stock row (checkout compensation)
func (s *Store) IncrementStock(ctx context.Context, productOptionID int64, quantity int) error {
	_ = ctx

	unlock := s.locks.lock(stockKey(productOptionID))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, ok := s.stocks[productOptionID]
	if !ok {
		return models.ErrStockNotFound
	}
	stock.Quantity += quantity
	stock.UpdatedAt = time.Now()
	return nil
}

// GetBalance retrieves the balance for a user
func (s *Store) GetBalance(ctx context.Context, userID int64) (*models.Balance, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	balance, ok := s.balances[userID]
	if !ok {
		return nil, models.ErrBalanceNotFound
	}
	clone := *balance
	return &clone, nil
}

// DecrementBalance deducts amount under the balance row's key lock,
// failing without mutation if the balance would go negative
func (s *Store) DecrementBalance(ctx context.Context, userID int64, amount int64) error {
	_ = ctx

	unlock := s.locks.lock(balanceKey(userID))
	defer unlock()

	s.mu.RLock()
	balance, ok := s.balances[userID]
	var current int64
	if ok {
		current = balance.Amount
	}
	s.mu.RUnlock()

	if !ok {
		return models.ErrBalanceNotFound
	}
	if current < amount {
		return models.ErrInsufficientBalance
	}

	s.mu.Lock()
	balance.Amount = current - amount
	balance.UpdatedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// IncrementBalance returns amount to a user's balance (checkout compensation)
func (s *Store) IncrementBalance(ctx context.Context, userID int64, amount int64) error {
	_ = ctx

	unlock := s.locks.lock(balanceKey(userID))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[userID]
	if !ok {
		return models.ErrBalanceNotFound
	}
	balance.Amount += amount
	balance.UpdatedAt = time.Now()
	return nil
}
