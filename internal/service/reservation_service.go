package service

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type reservationStore interface {
	store.ReservationStore
	store.CartStore
}

// ReservationService manages the short-lived inventory holds that block
// other shoppers from claiming the same units while one shopper finalizes
// checkout
type ReservationService struct {
	store     reservationStore
	publisher *broker.EventPublisher
	ttl       time.Duration
	logger    *zap.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(store reservationStore, publisher *broker.EventPublisher, ttl time.Duration) *ReservationService {
	return &ReservationService{
		store:     store,
		publisher: publisher,
		ttl:       ttl,
		logger:    util.NamedLogger("reservation"),
	}
}

// ReservationLine pairs a created hold with the availability left behind it
type ReservationLine struct {
	Reservation    models.InventoryReservation `json:"reservation"`
	AvailableStock int                         `json:"available_stock"`
}

// ReserveCart places a hold on every line of the user's cart. Availability
// is stock minus the sum of other active holds, computed under the same
// lock that inserts the new rows; a user with an active hold cannot open a
// second one.
func (s *ReservationService) ReserveCart(ctx context.Context, userID int64) ([]ReservationLine, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.ReserveCart")
	defer span.End()

	items, err := s.store.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 {
		return nil, models.ErrCartEmpty
	}

	requests := make([]models.ReservationRequest, len(items))
	for i, item := range items {
		requests[i] = models.ReservationRequest{
			ProductOptionID: item.ProductOptionID,
			Quantity:        item.Quantity,
		}
	}

	now := time.Now()
	reservations, err := s.store.Reserve(ctx, userID, requests, now, now.Add(s.ttl))
	if err != nil {
		switch err {
		case models.ErrDuplicateReservation:
			util.ReservationsFailedTotal.WithLabelValues("duplicate").Inc()
		case models.ErrInsufficientAvailableStock:
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		default:
			util.ReservationsFailedTotal.WithLabelValues("error").Inc()
		}
		util.RecordSpanError(span, err)
		return nil, err
	}

	util.ReservationsCreatedTotal.Add(float64(len(reservations)))
	s.logger.Info("Cart reserved",
		zap.Int64("user_id", userID),
		zap.Int("lines", len(reservations)),
		zap.Time("expires_at", now.Add(s.ttl)))

	lines := make([]ReservationLine, len(reservations))
	for i, r := range reservations {
		available, err := s.store.AvailableStock(ctx, r.ProductOptionID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to compute availability: %w", err)
		}
		lines[i] = ReservationLine{Reservation: r, AvailableStock: available}
	}
	return lines, nil
}

// Active retrieves the user's unexpired holds
func (s *ReservationService) Active(ctx context.Context, userID int64) ([]models.InventoryReservation, error) {
	return s.store.ActiveReservations(ctx, userID, time.Now())
}

// Validate checks that the user holds an unexpired reservation covering
// every cart line. A line with no covering hold is ReservationNotFound; a
// covering hold past its deadline is ReservationExpired.
func (s *ReservationService) Validate(ctx context.Context, userID int64, items []models.CartItem, now time.Time) ([]models.InventoryReservation, error) {
	reserved, err := s.store.ReservedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reservations: %w", err)
	}

	byOption := make(map[int64]models.InventoryReservation, len(reserved))
	for _, r := range reserved {
		byOption[r.ProductOptionID] = r
	}

	matched := make([]models.InventoryReservation, 0, len(items))
	for _, item := range items {
		r, ok := byOption[item.ProductOptionID]
		if !ok || r.Quantity < item.Quantity {
			return nil, models.ErrReservationNotFound
		}
		if !r.ExpiresAt.After(now) {
			return nil, models.ErrReservationExpired
		}
		matched = append(matched, r)
	}
	return matched, nil
}

// Confirm transitions the given holds RESERVED -> CONFIRMED. Called only
// after stock has been durably deducted.
func (s *ReservationService) Confirm(ctx context.Context, ids []int64) error {
	return s.store.ConfirmReservations(ctx, ids)
}

// Release explicitly cancels the user's active holds
func (s *ReservationService) Release(ctx context.Context, userID int64) (int64, error) {
	released, err := s.store.ReleaseReservations(ctx, userID, time.Now())
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.logger.Info("Reservations released",
			zap.Int64("user_id", userID),
			zap.Int64("count", released))
	}
	return released, nil
}

// SweepExpired physically reclaims time-expired holds. Availability never
// depends on the sweep: stale holds already stop counting at read time.
func (s *ReservationService) SweepExpired(ctx context.Context) (int64, error) {
	expired, err := s.store.ExpireStaleReservations(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if expired == 0 {
		return 0, nil
	}

	util.ReservationsExpiredTotal.Add(float64(expired))
	s.logger.Info("Expired reservations reclaimed", zap.Int64("count", expired))

	if s.publisher != nil {
		event := &models.ReservationsExpiredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeReservationsExpired,
				Timestamp: time.Now(),
			},
			Count: expired,
		}
		if err := s.publisher.PublishReservationsExpired(ctx, event); err != nil {
			s.logger.Error("Failed to publish ReservationsExpired event", zap.Error(err))
		}
	}
	return expired, nil
}
