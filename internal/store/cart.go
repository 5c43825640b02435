package store

import (
	"context"
	"database/sql"

	"checkout-service/internal/models"
)

type cartUpsertRow struct {
	models.CartItem
	IsNew bool `db:"is_new"`
}

// UpsertCartItem inserts a new cart line or atomically increments an
// existing one. The cap check lives in the DO UPDATE WHERE clause, so the
// read-and-conditionally-write is a single statement: concurrent increments
// serialize on the row and an increment that would cross the cap matches no
// row and mutates nothing. xmax = 0 distinguishes a fresh insert from an
// increment.
func (s *PostgresStore) UpsertCartItem(ctx context.Context, userID, productOptionID int64, quantity int) (*models.CartItem, bool, error) {
	if quantity < 1 || quantity > models.CartMaxQuantity {
		return nil, false, models.ErrCartCapExceeded
	}

	var row cartUpsertRow
	err := s.db.GetContext(ctx, &row,
		`INSERT INTO cart_items (user_id, product_option_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_option_id) DO UPDATE
		 SET quantity = cart_items.quantity + EXCLUDED.quantity,
		     updated_at = NOW()
		 WHERE cart_items.quantity + EXCLUDED.quantity <= $4
		 RETURNING user_id, product_option_id, quantity, created_at, updated_at,
		           (xmax = 0) AS is_new`,
		userID, productOptionID, quantity, models.CartMaxQuantity)
	if err == sql.ErrNoRows {
		return nil, false, models.ErrCartCapExceeded
	}
	if err != nil {
		return nil, false, err
	}
	return &row.CartItem, row.IsNew, nil
}

// GetCartItems retrieves all cart lines for a user
func (s *PostgresStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE user_id = $1 ORDER BY product_option_id", userID)
	return items, err
}

// RemoveCartItem deletes one cart line
func (s *PostgresStore) RemoveCartItem(ctx context.Context, userID, productOptionID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_option_id = $2",
		userID, productOptionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCartItemNotFound
	}
	return nil
}

// ClearCart removes all cart lines for a user; clearing an empty cart is a no-op
func (s *PostgresStore) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
