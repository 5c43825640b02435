package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type couponStore interface {
	store.CatalogStore
	store.CouponStore
}

// CouponService handles first-come-first-served coupon issuance and
// redemption checks. The database ticket pool is authoritative; the
// optional Redis counter in front of it sheds claims for sold-out coupons
// before they reach the database.
type CouponService struct {
	store     couponStore
	gate      *redisclient.Client
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewCouponService creates a new coupon service. gate and publisher may be
// nil, in which case claims go straight to the database and no events are
// published.
func NewCouponService(store couponStore, gate *redisclient.Client, publisher *broker.EventPublisher) *CouponService {
	return &CouponService{
		store:     store,
		gate:      gate,
		publisher: publisher,
		logger:    util.NamedLogger("coupon"),
	}
}

// IssueCoupon claims one ticket of the coupon for the user. Under N
// concurrent callers and M available tickets exactly min(N, M) succeed,
// each with a distinct ticket; a user holding the coupon already is
// rejected without consuming a ticket.
func (s *CouponService) IssueCoupon(ctx context.Context, couponID, userID int64) (*models.UserCoupon, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.IssueCoupon")
	defer span.End()

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	coupon, err := s.store.GetCoupon(ctx, couponID)
	if err != nil {
		util.CouponIssueDeniedTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	now := time.Now()
	if !coupon.IsWithinWindow(now) {
		util.CouponIssueDeniedTotal.WithLabelValues("expired").Inc()
		return nil, models.ErrCouponExpired
	}

	gateClaimed := false
	if s.gate != nil {
		ok, gateErr := s.gate.ClaimSlot(ctx, couponID)
		switch {
		case gateErr != nil:
			s.logger.Warn("Coupon gate unavailable, falling back to database",
				zap.Int64("coupon_id", couponID),
				zap.Error(gateErr))
		case !ok:
			util.CouponGateShortCircuitTotal.Inc()
			util.CouponIssueDeniedTotal.WithLabelValues("out_of_stock").Inc()
			return nil, models.ErrCouponOutOfStock
		default:
			gateClaimed = true
		}
	}

	uc, err := s.store.IssueTicket(ctx, couponID, userID, now)
	if err != nil {
		s.settleGateSlot(ctx, couponID, gateClaimed, err)
		switch {
		case errors.Is(err, models.ErrCouponOutOfStock):
			util.CouponIssueDeniedTotal.WithLabelValues("out_of_stock").Inc()
		case errors.Is(err, models.ErrCouponAlreadyIssued):
			util.CouponIssueDeniedTotal.WithLabelValues("already_issued").Inc()
		default:
			util.CouponIssueDeniedTotal.WithLabelValues("error").Inc()
		}
		util.RecordSpanError(span, err)
		return nil, err
	}

	util.CouponTicketsIssuedTotal.Inc()
	s.logger.Info("Coupon issued",
		zap.Int64("coupon_id", couponID),
		zap.Int64("user_id", userID),
		zap.Int64("ticket_id", uc.TicketID))

	if s.publisher != nil {
		event := &models.CouponIssuedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCouponIssued,
				Timestamp: now,
			},
			CouponID:     couponID,
			UserID:       userID,
			TicketID:     uc.TicketID,
			UserCouponID: uc.ID,
		}
		if err := s.publisher.PublishCouponIssued(ctx, event); err != nil {
			s.logger.Error("Failed to publish CouponIssued event", zap.Error(err))
		}
	}

	return uc, nil
}

// settleGateSlot reconciles the Redis counter after a failed database
// claim: a failure that consumed no ticket returns the slot, while a
// database sell-out pins the counter to zero so later claims shed fast.
func (s *CouponService) settleGateSlot(ctx context.Context, couponID int64, gateClaimed bool, claimErr error) {
	if s.gate == nil || !gateClaimed {
		return
	}

	if errors.Is(claimErr, models.ErrCouponOutOfStock) {
		if err := s.gate.InitCounter(ctx, couponID, 0); err != nil {
			s.logger.Error("Failed to zero coupon counter", zap.Int64("coupon_id", couponID), zap.Error(err))
		}
		return
	}
	if err := s.gate.ReleaseSlot(ctx, couponID); err != nil {
		s.logger.Error("Failed to return coupon gate slot", zap.Int64("coupon_id", couponID), zap.Error(err))
	}
}

// ResolveRedemption validates a user coupon for an order of the given
// subtotal and computes its discount. Read-only; the one-shot USED flip
// happens inside the checkout.
func (s *CouponService) ResolveRedemption(ctx context.Context, userCouponID, userID, subtotal int64, now time.Time) (*models.UserCoupon, *models.Coupon, int64, error) {
	uc, err := s.store.GetUserCoupon(ctx, userCouponID)
	if err != nil {
		return nil, nil, 0, err
	}
	if uc.UserID != userID {
		return nil, nil, 0, models.ErrCouponNotOwned
	}
	if uc.Status != models.UserCouponStatusIssued {
		return nil, nil, 0, models.ErrCouponAlreadyUsed
	}

	coupon, err := s.store.GetCoupon(ctx, uc.CouponID)
	if err != nil {
		return nil, nil, 0, err
	}
	if !coupon.IsWithinWindow(now) {
		return nil, nil, 0, models.ErrCouponExpired
	}
	if subtotal < coupon.MinOrderAmount {
		return nil, nil, 0, models.ErrInvalidOrderAmount
	}

	return uc, coupon, coupon.Discount(subtotal), nil
}

// ListCoupons retrieves all coupons
func (s *CouponService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return s.store.ListCoupons(ctx)
}

// ListUserCoupons retrieves a user's coupon history
func (s *CouponService) ListUserCoupons(ctx context.Context, userID int64) ([]models.UserCoupon, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListUserCoupons(ctx, userID)
}

// SyncCountersToRedis seeds the gate counters from the authoritative
// ticket pool
func (s *CouponService) SyncCountersToRedis(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}

	coupons, err := s.store.ListCoupons(ctx)
	if err != nil {
		return fmt.Errorf("failed to list coupons: %w", err)
	}

	for _, coupon := range coupons {
		remaining, err := s.store.CountAvailableTickets(ctx, coupon.ID)
		if err != nil {
			s.logger.Error("Failed to count tickets",
				zap.Int64("coupon_id", coupon.ID),
				zap.Error(err))
			continue
		}
		if err := s.gate.InitCounter(ctx, coupon.ID, remaining); err != nil {
			s.logger.Error("Failed to seed coupon counter",
				zap.Int64("coupon_id", coupon.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("Coupon counters synced", zap.Int("count", len(coupons)))
	return nil
}
