package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCouponIssued publishes CouponIssued event
func (ep *EventPublisher) PublishCouponIssued(ctx context.Context, event *models.CouponIssuedEvent) error {
	key := fmt.Sprintf("coupon-%d", event.CouponID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReservationsExpired publishes ReservationsExpired event
func (ep *EventPublisher) PublishReservationsExpired(ctx context.Context, event *models.ReservationsExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, "reservation-sweeper", event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onOrderCreated func(context.Context, *models.OrderCreatedEvent) error
	onCouponIssued func(context.Context, *models.CouponIssuedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnCouponIssued registers a handler for CouponIssued events
func (eh *EventHandler) OnCouponIssued(handler func(context.Context, *models.CouponIssuedEvent) error) {
	eh.onCouponIssued = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeCouponIssued:
		if eh.onCouponIssued != nil {
			var event models.CouponIssuedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CouponIssued event: %w", err)
			}
			return eh.onCouponIssued(ctx, &event)
		}

	default:
		util.GetLogger().Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
