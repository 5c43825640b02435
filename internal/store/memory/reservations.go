package memory

import (
	"context"
	"sort"
	"time"

	"checkout-service/internal/models"
)

// Reserve creates holds for all requested items or none. The user's
// reservation key lock serializes same-user reserves for the duplicate
// check, then the stock key lock of every requested option is acquired in
// sorted order (no deadlock between concurrent multi-line reserves) and
// held across both the availability computation and the inserts.
func (s *Store) Reserve(ctx context.Context, userID int64, items []models.ReservationRequest, now, expiresAt time.Time) ([]models.InventoryReservation, error) {
	_ = ctx

	optionIDs := make([]int64, 0, len(items))
	seen := make(map[int64]bool)
	for _, item := range items {
		if !seen[item.ProductOptionID] {
			seen[item.ProductOptionID] = true
			optionIDs = append(optionIDs, item.ProductOptionID)
		}
	}
	sort.Slice(optionIDs, func(i, j int) bool { return optionIDs[i] < optionIDs[j] })

	unlockUser := s.locks.lock(reservationUserKey(userID))
	defer unlockUser()
	for _, id := range optionIDs {
		unlock := s.locks.lock(stockKey(id))
		defer unlock()
	}

	s.mu.RLock()
	var checkErr error
	for _, r := range s.reservations {
		if r.UserID == userID && r.IsActive(now) {
			checkErr = models.ErrDuplicateReservation
			break
		}
	}
	if checkErr == nil {
		for _, item := range items {
			stock, ok := s.stocks[item.ProductOptionID]
			if !ok {
				checkErr = models.ErrStockNotFound
				break
			}
			if stock.Quantity-s.heldQuantity(item.ProductOptionID, now) < item.Quantity {
				checkErr = models.ErrInsufficientAvailableStock
				break
			}
		}
	}
	s.mu.RUnlock()
	if checkErr != nil {
		return nil, checkErr
	}

	s.mu.Lock()
	reservations := make([]models.InventoryReservation, 0, len(items))
	for _, item := range items {
		r := &models.InventoryReservation{
			ID:              s.nextID("inventory_reservations"),
			ProductOptionID: item.ProductOptionID,
			UserID:          userID,
			Quantity:        item.Quantity,
			Status:          models.ReservationStatusReserved,
			ReservedAt:      now,
			ExpiresAt:       expiresAt,
		}
		s.reservations[r.ID] = r
		reservations = append(reservations, *r)
	}
	s.mu.Unlock()
	return reservations, nil
}

// heldQuantity sums active holds for a product option; callers hold s.mu
// in at least read mode
func (s *Store) heldQuantity(productOptionID int64, now time.Time) int {
	held := 0
	for _, r := range s.reservations {
		if r.ProductOptionID == productOptionID && r.IsActive(now) {
			held += r.Quantity
		}
	}
	return held
}

// AvailableStock computes stock minus active holds for a product option
func (s *Store) AvailableStock(ctx context.Context, productOptionID int64, now time.Time) (int, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	stock, ok := s.stocks[productOptionID]
	if !ok {
		return 0, models.ErrStockNotFound
	}
	return stock.Quantity - s.heldQuantity(productOptionID, now), nil
}

// ActiveReservations retrieves the user's unexpired RESERVED holds
func (s *Store) ActiveReservations(ctx context.Context, userID int64, now time.Time) ([]models.InventoryReservation, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]models.InventoryReservation, 0)
	for _, r := range s.reservations {
		if r.UserID == userID && r.IsActive(now) {
			reservations = append(reservations, *r)
		}
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].ID < reservations[j].ID })
	return reservations, nil
}

// ReservedByUser retrieves the user's RESERVED holds regardless of expiry
func (s *Store) ReservedByUser(ctx context.Context, userID int64) ([]models.InventoryReservation, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]models.InventoryReservation, 0)
	for _, r := range s.reservations {
		if r.UserID == userID && r.Status == models.ReservationStatusReserved {
			reservations = append(reservations, *r)
		}
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].ID < reservations[j].ID })
	return reservations, nil
}

// ConfirmReservations transitions the given holds RESERVED -> CONFIRMED
func (s *Store) ConfirmReservations(ctx context.Context, ids []int64) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if r, ok := s.reservations[id]; ok && r.Status == models.ReservationStatusReserved {
			r.Status = models.ReservationStatusConfirmed
		}
	}
	return nil
}

// ReleaseReservations explicitly cancels the user's active holds
func (s *Store) ReleaseReservations(ctx context.Context, userID int64, now time.Time) (int64, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	var released int64
	for _, r := range s.reservations {
		if r.UserID == userID && r.IsActive(now) {
			r.Status = models.ReservationStatusReleased
			released++
		}
	}
	return released, nil
}

// ExpireStaleReservations physically reclaims time-expired RESERVED rows
func (s *Store) ExpireStaleReservations(ctx context.Context, now time.Time) (int64, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int64
	for _, r := range s.reservations {
		if r.Status == models.ReservationStatusReserved && !r.ExpiresAt.After(now) {
			r.Status = models.ReservationStatusExpired
			expired++
		}
	}
	return expired, nil
}
