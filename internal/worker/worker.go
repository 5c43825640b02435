package worker

import (
	"context"
	"log"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
)

// SweeperWorker periodically reclaims expired inventory reservations.
// Expiry is already enforced lazily on every read, so the sweeper only
// keeps the reservations table from accumulating dead rows.
type SweeperWorker struct {
	reservationService *service.ReservationService
	interval           time.Duration
}

// NewSweeperWorker creates a new sweeper worker
func NewSweeperWorker(reservationService *service.ReservationService, interval time.Duration) *SweeperWorker {
	return &SweeperWorker{
		reservationService: reservationService,
		interval:           interval,
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *SweeperWorker) Start(ctx context.Context) error {
	log.Printf("Starting reservation sweeper (interval: %s)...", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping reservation sweeper...")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.reservationService.SweepExpired(ctx); err != nil {
				log.Printf("Reservation sweep failed: %v", err)
			}
		}
	}
}

// EventWorker consumes domain events from Kafka. Handlers are wrapped
// with a processed-event check so redelivered messages are skipped.
type EventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	events       store.EventStore
}

// NewEventWorker creates a new event worker
func NewEventWorker(consumer *broker.Consumer, events store.EventStore) *EventWorker {
	w := &EventWorker{
		consumer: consumer,
		events:   events,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnCouponIssued(w.handleCouponIssued)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *EventWorker) Start(ctx context.Context) error {
	log.Println("Starting event worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EventWorker) Stop() error {
	log.Println("Stopping event worker...")
	return w.consumer.Close()
}

func (w *EventWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	seen, err := w.seenBefore(ctx, event.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	log.Printf("Order created: order=%d user=%d total=%d items=%d",
		event.OrderID, event.UserID, event.TotalAmount, len(event.Items))

	return w.events.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *EventWorker) handleCouponIssued(ctx context.Context, event *models.CouponIssuedEvent) error {
	seen, err := w.seenBefore(ctx, event.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	log.Printf("Coupon issued: coupon=%d user=%d ticket=%d",
		event.CouponID, event.UserID, event.TicketID)

	return w.events.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *EventWorker) seenBefore(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	processed, err := w.events.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, err
	}
	if processed {
		log.Printf("Skipping already processed event: %s", eventID)
	}
	return processed, nil
}
