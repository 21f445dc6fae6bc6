package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CartService manages session-scoped carts persisted under cart:<id>
type CartService struct {
	mu      sync.Mutex
	catalog *CatalogService
	kv      store.KV
	policy  Policy
	now     func() time.Time
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(catalog *CatalogService, kv store.KV, policy Policy) *CartService {
	return &CartService{
		catalog: catalog,
		kv:      kv,
		policy:  policy,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// CartSummary is a cart with its price preview
type CartSummary struct {
	Cart   models.Cart `json:"cart"`
	Totals Totals      `json:"totals"`
	Items  int         `json:"item_count"`
}

// Get returns the cart, empty when it does not exist yet
func (s *CartService) Get(ctx context.Context, cartID string) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, cartID)
}

// AddItem adds quantity units of an active product, merging with an existing line.
// The line total may not exceed the product's stock.
func (s *CartService) AddItem(ctx context.Context, cartID, productID string, quantity int) (models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if quantity < 1 {
		return models.Cart{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidQuantity)
	}

	product, err := s.catalog.Get(productID)
	if err != nil {
		return models.Cart{}, err
	}
	if !product.IsActive {
		return models.Cart{}, fmt.Errorf("%w: %s", ErrProductInactive, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.load(ctx, cartID)
	if err != nil {
		return models.Cart{}, err
	}

	i := indexOfCartItem(cart.Items, productID)
	wanted := quantity
	if i >= 0 {
		wanted += cart.Items[i].Quantity
	}
	if wanted > product.Stock {
		return models.Cart{}, &StockError{ProductID: productID, Available: product.Stock, Requested: wanted}
	}

	if i >= 0 {
		cart.Items[i].Quantity = wanted
		cart.Items[i].Price = product.CurrentPrice
		cart.Items[i].ProductName = product.Name
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.CurrentPrice,
			ImageURL:    product.ImageURL,
			Quantity:    quantity,
		})
	}

	if err := s.save(ctx, &cart); err != nil {
		return models.Cart{}, err
	}

	s.logger.Debug("Cart item added",
		zap.String("cart_id", cartID),
		zap.String("product_id", productID),
		zap.Int("quantity", wanted))
	return cart, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (models.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, cartID, productID)
	}

	product, err := s.catalog.Get(productID)
	if err != nil {
		return models.Cart{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.load(ctx, cartID)
	if err != nil {
		return models.Cart{}, err
	}
	i := indexOfCartItem(cart.Items, productID)
	if i < 0 {
		return models.Cart{}, fmt.Errorf("%w: %s not in cart", ErrProductNotFound, productID)
	}
	if quantity > product.Stock {
		return models.Cart{}, &StockError{ProductID: productID, Available: product.Stock, Requested: quantity}
	}

	cart.Items[i].Quantity = quantity
	if err := s.save(ctx, &cart); err != nil {
		return models.Cart{}, err
	}
	return cart, nil
}

// RemoveItem drops a line; removing an absent line is not an error
func (s *CartService) RemoveItem(ctx context.Context, cartID, productID string) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.load(ctx, cartID)
	if err != nil {
		return models.Cart{}, err
	}
	if i := indexOfCartItem(cart.Items, productID); i >= 0 {
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	}
	if err := s.save(ctx, &cart); err != nil {
		return models.Cart{}, err
	}
	return cart, nil
}

// Clear deletes the cart
func (s *CartService) Clear(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, store.CartKey(cartID)); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Summary returns the cart with subtotal, shipping preview and total
func (s *CartService) Summary(ctx context.Context, cartID string) (CartSummary, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return CartSummary{}, err
	}

	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}

	summary := CartSummary{Cart: cart, Items: count}
	if len(cart.Items) > 0 {
		summary.Totals = s.policy.ComputeTotals(lineItems(cart.Items), 0, 0)
	}
	return summary, nil
}

func (s *CartService) load(ctx context.Context, cartID string) (models.Cart, error) {
	cart := models.Cart{ID: cartID}
	if _, err := s.kv.Get(ctx, store.CartKey(cartID), &cart); err != nil {
		return models.Cart{}, fmt.Errorf("failed to load cart: %w", err)
	}
	cart.ID = cartID
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = s.now()
	if err := s.kv.Put(ctx, store.CartKey(cart.ID), cart); err != nil {
		util.LocalWriteFailures.WithLabelValues("durable", "cart").Inc()
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func indexOfCartItem(items []models.CartItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// lineItems snapshots cart lines into order lines
func lineItems(items []models.CartItem) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			ImageURL:    item.ImageURL,
		})
	}
	return out
}
