package service

import (
	"context"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

type cartStore interface {
	store.CatalogStore
	store.CartStore
}

// CartService handles cart business logic
type CartService struct {
	store  cartStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store cartStore) *CartService {
	return &CartService{
		store:  store,
		logger: util.NamedLogger("cart"),
	}
}

// AddItemResponse is the result of adding to the cart
type AddItemResponse struct {
	Item      models.CartItem `json:"item"`
	IsNewItem bool            `json:"is_new_item"`
}

// AddItem adds a quantity of a product option to the user's cart, creating
// the line on first add and incrementing it on repeat adds. The increment is
// atomic and capped; an add that would push the line past the cap fails
// without changing the stored quantity.
func (s *CartService) AddItem(ctx context.Context, userID, productOptionID int64, quantity int) (*AddItemResponse, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	opt, err := s.store.GetProductOption(ctx, productOptionID)
	if err != nil {
		return nil, err
	}
	if !opt.IsActive {
		return nil, models.ErrProductOptionInactive
	}

	item, isNew, err := s.store.UpsertCartItem(ctx, userID, productOptionID, quantity)
	if err != nil {
		if err == models.ErrCartCapExceeded {
			util.CartIncrementsRejectedTotal.Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	util.CartIncrementsAcceptedTotal.Inc()
	s.logger.Info("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_option_id", productOptionID),
		zap.Int("quantity", item.Quantity),
		zap.Bool("is_new", isNew))

	return &AddItemResponse{Item: *item, IsNewItem: isNew}, nil
}

// GetCart retrieves the user's cart lines
func (s *CartService) GetCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.GetCartItems(ctx, userID)
}

// RemoveItem removes one cart line
func (s *CartService) RemoveItem(ctx context.Context, userID, productOptionID int64) error {
	return s.store.RemoveCartItem(ctx, userID, productOptionID)
}
