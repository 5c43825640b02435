package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/lib/pq"
)

// GetCoupon retrieves a coupon by ID
func (s *PostgresStore) GetCoupon(ctx context.Context, id int64) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon, "SELECT * FROM coupons WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ListCoupons retrieves all coupons
func (s *PostgresStore) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := s.db.SelectContext(ctx, &coupons, "SELECT * FROM coupons ORDER BY id")
	return coupons, err
}

// CountAvailableTickets counts unclaimed tickets for a coupon
func (s *PostgresStore) CountAvailableTickets(ctx context.Context, couponID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM coupon_tickets WHERE coupon_id = $1 AND status = $2",
		couponID, models.TicketStatusAvailable)
	return count, err
}

// IssueTicket claims one AVAILABLE ticket for the user and records the
// UserCoupon, all in one transaction. The claim uses FOR UPDATE SKIP LOCKED
// so contending claimants pick distinct candidate rows instead of queueing
// behind each other; the unique (user_id, coupon_id) constraint on
// user_coupons backstops the duplicate-issuance pre-check, and a constraint
// hit rolls the ticket back to AVAILABLE with the transaction.
func (s *PostgresStore) IssueTicket(ctx context.Context, couponID, userID int64, now time.Time) (*models.UserCoupon, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var already bool
	err = tx.GetContext(ctx, &already,
		"SELECT EXISTS(SELECT 1 FROM user_coupons WHERE user_id = $1 AND coupon_id = $2)",
		userID, couponID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior issuance: %w", err)
	}
	if already {
		return nil, models.ErrCouponAlreadyIssued
	}

	var ticket models.CouponTicket
	err = tx.GetContext(ctx, &ticket,
		`UPDATE coupon_tickets
		 SET status = $1, owner_user_id = $2, issued_at = $3
		 WHERE id = (
		     SELECT id FROM coupon_tickets
		     WHERE coupon_id = $4 AND status = $5
		     ORDER BY id
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		models.TicketStatusIssued, userID, now, couponID, models.TicketStatusAvailable)
	if err == sql.ErrNoRows {
		return nil, models.ErrCouponOutOfStock
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim ticket: %w", err)
	}

	uc := models.UserCoupon{
		UserID:   userID,
		CouponID: couponID,
		TicketID: ticket.ID,
		Status:   models.UserCouponStatusIssued,
		IssuedAt: now,
	}
	err = tx.GetContext(ctx, &uc,
		`INSERT INTO user_coupons (user_id, coupon_id, ticket_id, status, issued_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING *`,
		uc.UserID, uc.CouponID, uc.TicketID, uc.Status, uc.IssuedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, models.ErrCouponAlreadyIssued
		}
		return nil, fmt.Errorf("failed to record user coupon: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &uc, nil
}

// GetUserCoupon retrieves a user coupon by ID
func (s *PostgresStore) GetUserCoupon(ctx context.Context, id int64) (*models.UserCoupon, error) {
	var uc models.UserCoupon
	err := s.db.GetContext(ctx, &uc, "SELECT * FROM user_coupons WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// ListUserCoupons retrieves a user's coupon history
func (s *PostgresStore) ListUserCoupons(ctx context.Context, userID int64) ([]models.UserCoupon, error) {
	var ucs []models.UserCoupon
	err := s.db.SelectContext(ctx, &ucs,
		"SELECT * FROM user_coupons WHERE user_id = $1 ORDER BY issued_at DESC", userID)
	return ucs, err
}

// MarkUserCouponUsed flips an ISSUED user coupon to USED bound to the order.
// The status guard in the WHERE clause makes the transition one-shot.
func (s *PostgresStore) MarkUserCouponUsed(ctx context.Context, id, orderID int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_coupons
		 SET status = $1, used_order_id = $2, used_at = $3
		 WHERE id = $4 AND status = $5`,
		models.UserCouponStatusUsed, orderID, now, id, models.UserCouponStatusIssued)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCouponAlreadyUsed
	}
	return nil
}

// RestoreUserCoupon reverts a USED user coupon to ISSUED (checkout compensation)
func (s *PostgresStore) RestoreUserCoupon(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_coupons
		 SET status = $1, used_order_id = NULL, used_at = NULL
		 WHERE id = $2`,
		models.UserCouponStatusIssued, id)
	return err
}
