// Package memory provides an in-process Store backend with the same
// atomicity contract as the Postgres store. Each contended resource key is
// guarded by its own mutex, held across the read-check-write of exactly one
// logical operation; s.mu only guards the map and field accesses inside it,
// taken briefly per phase, so operations on different resources do not
// serialize against each other. Writers publish field changes under
// s.mu.Lock so snapshot readers under RLock never observe a torn value.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
)

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	if _, ok := k.locks[key]; !ok {
		k.locks[key] = &sync.Mutex{}
	}
	return k.locks[key]
}

// lock acquires the mutex for one resource key and returns its unlock
func (k *keyedMutex) lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

func stockKey(productOptionID int64) string  { return fmt.Sprintf("stock:%d", productOptionID) }
func balanceKey(userID int64) string         { return fmt.Sprintf("balance:%d", userID) }
func couponKey(couponID int64) string        { return fmt.Sprintf("coupon:%d", couponID) }
func userCouponKey(id int64) string          { return fmt.Sprintf("user-coupon:%d", id) }
func cartKey(userID int64) string            { return fmt.Sprintf("cart:%d", userID) }
func reservationUserKey(userID int64) string { return fmt.Sprintf("resv-user:%d", userID) }
func pairKey(userID, otherID int64) string   { return fmt.Sprintf("%d:%d", userID, otherID) }

// Store is the in-memory Store backend
type Store struct {
	locks keyedMutex

	mu            sync.RWMutex
	users         map[int64]models.User
	options       map[int64]models.ProductOption
	stocks        map[int64]*models.Stock
	balances      map[int64]*models.Balance
	coupons       map[int64]models.Coupon
	tickets       map[int64]*models.CouponTicket
	userCoupons   map[int64]*models.UserCoupon
	userCouponIdx map[string]int64
	reservations  map[int64]*models.InventoryReservation
	cartItems     map[string]*models.CartItem
	orders        map[int64]*models.Order
	orderItems    map[int64][]models.OrderItem
	ordersByKey   map[string]int64
	events        map[string]string
	seq           map[string]int64
}

var _ store.Store = (*Store)(nil)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		users:         make(map[int64]models.User),
		options:       make(map[int64]models.ProductOption),
		stocks:        make(map[int64]*models.Stock),
		balances:      make(map[int64]*models.Balance),
		coupons:       make(map[int64]models.Coupon),
		tickets:       make(map[int64]*models.CouponTicket),
		userCoupons:   make(map[int64]*models.UserCoupon),
		userCouponIdx: make(map[string]int64),
		reservations:  make(map[int64]*models.InventoryReservation),
		cartItems:     make(map[string]*models.CartItem),
		orders:        make(map[int64]*models.Order),
		orderItems:    make(map[int64][]models.OrderItem),
		ordersByKey:   make(map[string]int64),
		events:        make(map[string]string),
		seq:           make(map[string]int64),
	}
}

func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// SeedUser inserts a user with a zero balance
func (s *Store) SeedUser(name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := models.User{ID: s.nextID("users"), Name: name, CreatedAt: time.Now()}
	s.users[u.ID] = u
	s.balances[u.ID] = &models.Balance{UserID: u.ID, UpdatedAt: u.CreatedAt}
	return &u
}

// SeedBalance sets a user's balance
func (s *Store) SeedBalance(userID, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[userID] = &models.Balance{UserID: userID, Amount: amount, UpdatedAt: time.Now()}
}

// SeedProductOption inserts an active product option with its stock counter
func (s *Store) SeedProductOption(name string, price int64, stockQuantity int) *models.ProductOption {
	s.mu.Lock()
	defer s.mu.Unlock()

	opt := models.ProductOption{
		ID:        s.nextID("product_options"),
		ProductID: s.nextID("products"),
		Name:      name,
		Price:     price,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	s.options[opt.ID] = opt
	s.stocks[opt.ID] = &models.Stock{
		ProductOptionID: opt.ID,
		Quantity:        stockQuantity,
		UpdatedAt:       opt.CreatedAt,
	}
	return &opt
}

// SetProductOptionActive toggles a product option's active flag
func (s *Store) SetProductOptionActive(optionID int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opt, ok := s.options[optionID]; ok {
		opt.IsActive = active
		s.options[optionID] = opt
	}
}

// SeedCoupon inserts a coupon and mints its full ticket batch, one
// AVAILABLE ticket per unit of quota
func (s *Store) SeedCoupon(c models.Coupon) *models.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextID("coupons")
	c.CreatedAt = time.Now()
	s.coupons[c.ID] = c

	for i := 0; i < c.TotalQuantity; i++ {
		t := &models.CouponTicket{
			ID:       s.nextID("coupon_tickets"),
			CouponID: c.ID,
			Status:   models.TicketStatusAvailable,
		}
		s.tickets[t.ID] = t
	}
	return &c
}

// SeedReservation inserts a pre-existing hold directly
func (s *Store) SeedReservation(r models.InventoryReservation) *models.InventoryReservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID("inventory_reservations")
	s.reservations[r.ID] = &r
	clone := r
	return &clone
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

// GetProductOption retrieves a product option by ID
func (s *Store) GetProductOption(ctx context.Context, id int64) (*models.ProductOption, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	opt, ok := s.options[id]
	if !ok {
		return nil, models.ErrProductOptionNotFound
	}
	return &opt, nil
}

// GetProductOptionsByIDs retrieves multiple product options by IDs
func (s *Store) GetProductOptionsByIDs(ctx context.Context, ids []int64) ([]models.ProductOption, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	opts := make([]models.ProductOption, 0, len(ids))
	for _, id := range ids {
		if opt, ok := s.options[id]; ok {
			opts = append(opts, opt)
		}
	}
	return opts, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.events[eventID]
	return ok, nil
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		s.events[eventID] = eventType
	}
	return nil
}
