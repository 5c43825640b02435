package store

import (
	"context"
	"database/sql"

	"checkout-service/internal/models"
)

// GetStock retrieves the stock counter for a product option
func (s *PostgresStore) GetStock(ctx context.Context, productOptionID int64) (*models.Stock, error) {
	var stock models.Stock
	err := s.db.GetContext(ctx, &stock,
		"SELECT * FROM stocks WHERE product_option_id = $1", productOptionID)
	if err == sql.ErrNoRows {
		return nil, models.ErrStockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// DecrementStock atomically deducts quantity from a stock row. The WHERE
// clause carries the non-negativity check, so two concurrent decrements can
// never both pass a stale read: the row lock taken by UPDATE serializes them
// and the loser sees the already-deducted quantity.
func (s *PostgresStore) DecrementStock(ctx context.Context, productOptionID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stocks
		 SET quantity = quantity - $1, updated_at = NOW()
		 WHERE product_option_id = $2 AND quantity >= $1`,
		quantity, productOptionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrInsufficientStock
	}
	return nil
}

// IncrementStock returns quantity to a stock row (checkout compensation)
func (s *PostgresStore) IncrementStock(ctx context.Context, productOptionID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE stocks
		 SET quantity = quantity + $1, updated_at = NOW()
		 WHERE product_option_id = $2`,
		quantity, productOptionID)
	return err
}

// GetBalance retrieves the balance for a user
func (s *PostgresStore) GetBalance(ctx context.Context, userID int64) (*models.Balance, error) {
	var balance models.Balance
	err := s.db.GetContext(ctx, &balance,
		"SELECT * FROM balances WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, models.ErrBalanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// DecrementBalance atomically deducts amount from a user's balance,
// failing without mutation if the balance would go negative
func (s *PostgresStore) DecrementBalance(ctx context.Context, userID int64, amount int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE balances
		 SET amount = amount - $1, updated_at = NOW()
		 WHERE user_id = $2 AND amount >= $1`,
		amount, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrInsufficientBalance
	}
	return nil
}

// IncrementBalance returns amount to a user's balance (checkout compensation)
func (s *PostgresStore) IncrementBalance(ctx context.Context, userID int64, amount int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE balances
		 SET amount = amount + $1, updated_at = NOW()
		 WHERE user_id = $2`,
		amount, userID)
	return err
}
