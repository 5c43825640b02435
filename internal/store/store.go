package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// CatalogStore exposes the read-only collaborator lookups: users and
// product options. No concurrency contract beyond "read current state".
type CatalogStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetProductOption(ctx context.Context, id int64) (*models.ProductOption, error)
	GetProductOptionsByIDs(ctx context.Context, ids []int64) ([]models.ProductOption, error)
}

// StockStore is the authoritative available-stock ledger. Decrement is a
// single atomic conditional mutation: it succeeds only if the remaining
// quantity stays non-negative, otherwise nothing changes.
type StockStore interface {
	GetStock(ctx context.Context, productOptionID int64) (*models.Stock, error)
	DecrementStock(ctx context.Context, productOptionID int64, quantity int) error
	IncrementStock(ctx context.Context, productOptionID int64, quantity int) error
}

// BalanceStore is the authoritative per-user balance ledger with the same
// conditional-decrement contract as StockStore.
type BalanceStore interface {
	GetBalance(ctx context.Context, userID int64) (*models.Balance, error)
	DecrementBalance(ctx context.Context, userID int64, amount int64) error
	IncrementBalance(ctx context.Context, userID int64, amount int64) error
}

// CouponStore owns coupons, their pre-minted ticket pool and per-user
// issuance records. IssueTicket claims exactly one AVAILABLE ticket and
// creates the UserCoupon in one atomic unit; concurrent claimants never
// receive the same ticket and a duplicate issuance fails the whole claim.
type CouponStore interface {
	GetCoupon(ctx context.Context, id int64) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	CountAvailableTickets(ctx context.Context, couponID int64) (int, error)
	IssueTicket(ctx context.Context, couponID, userID int64, now time.Time) (*models.UserCoupon, error)
	GetUserCoupon(ctx context.Context, id int64) (*models.UserCoupon, error)
	ListUserCoupons(ctx context.Context, userID int64) ([]models.UserCoupon, error)
	MarkUserCouponUsed(ctx context.Context, id, orderID int64, now time.Time) error
	RestoreUserCoupon(ctx context.Context, id int64) error
}

// ReservationStore owns the short-lived inventory holds. Reserve computes
// availability as stock minus the sum of active holds under the same lock
// that inserts the new rows. Expiry is lazy: a stale RESERVED row simply
// stops counting once its deadline passes.
type ReservationStore interface {
	Reserve(ctx context.Context, userID int64, items []models.ReservationRequest, now, expiresAt time.Time) ([]models.InventoryReservation, error)
	ActiveReservations(ctx context.Context, userID int64, now time.Time) ([]models.InventoryReservation, error)
	ReservedByUser(ctx context.Context, userID int64) ([]models.InventoryReservation, error)
	ConfirmReservations(ctx context.Context, ids []int64) error
	ReleaseReservations(ctx context.Context, userID int64, now time.Time) (int64, error)
	ExpireStaleReservations(ctx context.Context, now time.Time) (int64, error)
	AvailableStock(ctx context.Context, productOptionID int64, now time.Time) (int, error)
}

// CartStore owns the per (user, product option) quantity cells. The upsert
// is capped and atomic: an increment that would cross the cap is rejected
// without mutating, and concurrent increments never lose updates.
type CartStore interface {
	UpsertCartItem(ctx context.Context, userID, productOptionID int64, quantity int) (*models.CartItem, bool, error)
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, productOptionID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

// OrderStore persists orders and their lines. DeleteOrder exists for
// checkout compensation only.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, orderID int64, items []models.OrderItem) error
	DeleteOrder(ctx context.Context, orderID int64) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
}

// EventStore tracks processed event ids for idempotent consumption.
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Store is the full persistence surface; both the Postgres and the memory
// backends implement it.
type Store interface {
	CatalogStore
	StockStore
	BalanceStore
	CouponStore
	ReservationStore
	CartStore
	OrderStore
	EventStore
}

// PostgresStore is the database-backed Store
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new database store
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *PostgresStore) GetDB() *sqlx.DB {
	return s.db
}

// GetUserByID retrieves a user by ID
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProductOption retrieves a product option by ID
func (s *PostgresStore) GetProductOption(ctx context.Context, id int64) (*models.ProductOption, error) {
	var opt models.ProductOption
	err := s.db.GetContext(ctx, &opt, "SELECT * FROM product_options WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductOptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &opt, nil
}

// GetProductOptionsByIDs retrieves multiple product options by IDs
func (s *PostgresStore) GetProductOptionsByIDs(ctx context.Context, ids []int64) ([]models.ProductOption, error) {
	if len(ids) == 0 {
		return []models.ProductOption{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM product_options WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var opts []models.ProductOption
	err = s.db.SelectContext(ctx, &opts, query, args...)
	return opts, err
}

// IsEventProcessed checks if an event has been processed
func (s *PostgresStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *PostgresStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
