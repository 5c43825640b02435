package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// Reserve creates holds for all requested items or none. A per-user
// advisory lock is taken first, so two concurrent reserves from the same
// user serialize before the active-hold check; it releases at commit. The
// stock row of each item is then locked FOR UPDATE (in product-option
// order, so concurrent multi-line reserves cannot deadlock) before the
// active-hold sum is computed, which closes the window between the
// availability read and the insert. Time-expired RESERVED rows are
// excluded from the sum even before any sweeper has reclaimed them.
func (s *PostgresStore) Reserve(ctx context.Context, userID int64, items []models.ReservationRequest, now, expiresAt time.Time) ([]models.InventoryReservation, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", userID); err != nil {
		return nil, fmt.Errorf("failed to lock user reservations: %w", err)
	}

	var hasActive bool
	err = tx.GetContext(ctx, &hasActive,
		`SELECT EXISTS(
		     SELECT 1 FROM inventory_reservations
		     WHERE user_id = $1 AND status = $2 AND expires_at > $3
		 )`,
		userID, models.ReservationStatusReserved, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check active reservations: %w", err)
	}
	if hasActive {
		return nil, models.ErrDuplicateReservation
	}

	sorted := make([]models.ReservationRequest, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductOptionID < sorted[j].ProductOptionID
	})

	for _, item := range sorted {
		available, err := availableStockTx(ctx, tx, item.ProductOptionID, now, true)
		if err != nil {
			return nil, err
		}
		if available < item.Quantity {
			return nil, models.ErrInsufficientAvailableStock
		}
	}

	reservations := make([]models.InventoryReservation, 0, len(items))
	for _, item := range items {
		var r models.InventoryReservation
		err = tx.GetContext(ctx, &r,
			`INSERT INTO inventory_reservations
			     (product_option_id, user_id, quantity, status, reserved_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING *`,
			item.ProductOptionID, userID, item.Quantity,
			models.ReservationStatusReserved, now, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert reservation: %w", err)
		}
		reservations = append(reservations, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return reservations, nil
}

func availableStockTx(ctx context.Context, tx *sqlx.Tx, productOptionID int64, now time.Time, lock bool) (int, error) {
	q := "SELECT quantity FROM stocks WHERE product_option_id = $1"
	if lock {
		q += " FOR UPDATE"
	}

	var stock int
	if err := tx.GetContext(ctx, &stock, q, productOptionID); err != nil {
		return 0, fmt.Errorf("failed to read stock: %w", err)
	}

	var held int
	err := tx.GetContext(ctx, &held,
		`SELECT COALESCE(SUM(quantity), 0)
		 FROM inventory_reservations
		 WHERE product_option_id = $1 AND status = $2 AND expires_at > $3`,
		productOptionID, models.ReservationStatusReserved, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sum active reservations: %w", err)
	}

	return stock - held, nil
}

// AvailableStock computes stock minus active holds for a product option
func (s *PostgresStore) AvailableStock(ctx context.Context, productOptionID int64, now time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	available, err := availableStockTx(ctx, tx, productOptionID, now, false)
	if err != nil {
		return 0, err
	}
	return available, tx.Commit()
}

// ActiveReservations retrieves the user's unexpired RESERVED holds
func (s *PostgresStore) ActiveReservations(ctx context.Context, userID int64, now time.Time) ([]models.InventoryReservation, error) {
	var reservations []models.InventoryReservation
	err := s.db.SelectContext(ctx, &reservations,
		`SELECT * FROM inventory_reservations
		 WHERE user_id = $1 AND status = $2 AND expires_at > $3
		 ORDER BY id`,
		userID, models.ReservationStatusReserved, now)
	return reservations, err
}

// ReservedByUser retrieves the user's RESERVED holds regardless of expiry,
// letting callers tell a missing hold from a stale one
func (s *PostgresStore) ReservedByUser(ctx context.Context, userID int64) ([]models.InventoryReservation, error) {
	var reservations []models.InventoryReservation
	err := s.db.SelectContext(ctx, &reservations,
		`SELECT * FROM inventory_reservations
		 WHERE user_id = $1 AND status = $2
		 ORDER BY id`,
		userID, models.ReservationStatusReserved)
	return reservations, err
}

// ConfirmReservations transitions the given holds RESERVED -> CONFIRMED.
// Called only after stock has been durably deducted, so it never fails for
// resource reasons.
func (s *PostgresStore) ConfirmReservations(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"UPDATE inventory_reservations SET status = ? WHERE id IN (?) AND status = ?",
		models.ReservationStatusConfirmed, ids, models.ReservationStatusReserved)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// ReleaseReservations explicitly cancels the user's active holds
func (s *PostgresStore) ReleaseReservations(ctx context.Context, userID int64, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inventory_reservations
		 SET status = $1
		 WHERE user_id = $2 AND status = $3 AND expires_at > $4`,
		models.ReservationStatusReleased, userID, models.ReservationStatusReserved, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireStaleReservations physically reclaims time-expired RESERVED rows.
// Correctness does not depend on it: expired holds already stop counting
// against availability at read time. This keeps the table tidy.
func (s *PostgresStore) ExpireStaleReservations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inventory_reservations
		 SET status = $1
		 WHERE status = $2 AND expires_at <= $3`,
		models.ReservationStatusExpired, models.ReservationStatusReserved, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
