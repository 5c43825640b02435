package memory

import (
	"context"
	"sort"
	"time"

	"checkout-service/internal/models"
)

// GetCoupon retrieves a coupon by ID
func (s *Store) GetCoupon(ctx context.Context, id int64) (*models.Coupon, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coupons[id]
	if !ok {
		return nil, models.ErrCouponNotFound
	}
	return &c, nil
}

// ListCoupons retrieves all coupons
func (s *Store) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	coupons := make([]models.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		coupons = append(coupons, c)
	}
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].ID < coupons[j].ID })
	return coupons, nil
}

// CountAvailableTickets counts unclaimed tickets for a coupon
func (s *Store) CountAvailableTickets(ctx context.Context, couponID int64) (int, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.tickets {
		if t.CouponID == couponID && t.Status == models.TicketStatusAvailable {
			count++
		}
	}
	return count, nil
}

// IssueTicket claims one AVAILABLE ticket and records the UserCoupon under
// the coupon's key lock, which gives each ticket its AVAILABLE -> ISSUED
// transition exactly once and makes the duplicate-issuance check and the
// claim one indivisible step
func (s *Store) IssueTicket(ctx context.Context, couponID, userID int64, now time.Time) (*models.UserCoupon, error) {
	_ = ctx

	unlock := s.locks.lock(couponKey(couponID))
	defer unlock()

	s.mu.RLock()
	_, dup := s.userCouponIdx[pairKey(userID, couponID)]
	ids := make([]int64, 0)
	for id, t := range s.tickets {
		if t.CouponID == couponID && t.Status == models.TicketStatusAvailable {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	if dup {
		return nil, models.ErrCouponAlreadyIssued
	}
	if len(ids) == 0 {
		return nil, models.ErrCouponOutOfStock
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	owner := userID
	issuedAt := now

	s.mu.Lock()
	claimed := s.tickets[ids[0]]
	claimed.Status = models.TicketStatusIssued
	claimed.OwnerUserID = &owner
	claimed.IssuedAt = &issuedAt

	uc := &models.UserCoupon{
		ID:       s.nextID("user_coupons"),
		UserID:   userID,
		CouponID: couponID,
		TicketID: claimed.ID,
		Status:   models.UserCouponStatusIssued,
		IssuedAt: now,
	}
	s.userCoupons[uc.ID] = uc
	s.userCouponIdx[pairKey(userID, couponID)] = uc.ID
	s.mu.Unlock()

	clone := *uc
	return &clone, nil
}

// GetUserCoupon retrieves a user coupon by ID
func (s *Store) GetUserCoupon(ctx context.Context, id int64) (*models.UserCoupon, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	uc, ok := s.userCoupons[id]
	if !ok {
		return nil, models.ErrUserCouponNotFound
	}
	clone := *uc
	return &clone, nil
}

// ListUserCoupons retrieves a user's coupon history
func (s *Store) ListUserCoupons(ctx context.Context, userID int64) ([]models.UserCoupon, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	ucs := make([]models.UserCoupon, 0)
	for _, uc := range s.userCoupons {
		if uc.UserID == userID {
			ucs = append(ucs, *uc)
		}
	}
	sort.Slice(ucs, func(i, j int) bool { return ucs[i].IssuedAt.After(ucs[j].IssuedAt) })
	return ucs, nil
}

// MarkUserCouponUsed flips an ISSUED user coupon to USED bound to the order
func (s *Store) MarkUserCouponUsed(ctx context.Context, id, orderID int64, now time.Time) error {
	_ = ctx

	unlock := s.locks.lock(userCouponKey(id))
	defer unlock()

	s.mu.RLock()
	uc, ok := s.userCoupons[id]
	var status string
	if ok {
		status = uc.Status
	}
	s.mu.RUnlock()

	if !ok {
		return models.ErrUserCouponNotFound
	}
	if status != models.UserCouponStatusIssued {
		return models.ErrCouponAlreadyUsed
	}

	usedAt := now
	s.mu.Lock()
	uc.Status = models.UserCouponStatusUsed
	uc.UsedOrderID = &orderID
	uc.UsedAt = &usedAt
	s.mu.Unlock()
	return nil
}

// RestoreUserCoupon reverts a USED user coupon to ISSUED (checkout compensation)
func (s *Store) RestoreUserCoupon(ctx context.Context, id int64) error {
	_ = ctx

	unlock := s.locks.lock(userCouponKey(id))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	uc, ok := s.userCoupons[id]
	if !ok {
		return models.ErrUserCouponNotFound
	}
	uc.Status = models.UserCouponStatusIssued
	uc.UsedOrderID = nil
	uc.UsedAt = nil
	return nil
}
