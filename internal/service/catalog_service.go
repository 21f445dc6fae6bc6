package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/remote"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/validation"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const remoteWriteTimeout = 5 * time.Second

// CatalogService owns the in-process product list and projects it through
// the cache, durable and remote tiers.
type CatalogService struct {
	mu         sync.RWMutex
	products   []models.Product
	lastSynced time.Time

	tiers     *catalogTiers
	remote    RemoteStore
	bus       *events.Bus
	policy    Policy
	validate  *validatorv10.Validate
	refreshCh chan struct{}
	now       func() time.Time
	logger    *zap.Logger
}

// NewCatalogService creates a catalog. cache may be nil when no cache tier is configured.
func NewCatalogService(
	kv store.KV,
	cache ProductCache,
	remoteStore RemoteStore,
	bus *events.Bus,
	policy Policy,
) *CatalogService {
	logger := util.GetLogger()
	return &CatalogService{
		products: []models.Product{},
		tiers: &catalogTiers{
			cache:    cache,
			kv:       kv,
			remote:   remoteStore,
			validity: policy.CacheValidity,
			now:      time.Now,
			logger:   logger,
		},
		remote:    remoteStore,
		bus:       bus,
		policy:    policy,
		validate:  validation.New(),
		refreshCh: make(chan struct{}, 1),
		now:       time.Now,
		logger:    logger,
	}
}

// NewProduct is the admin input for a catalog record
type NewProduct struct {
	Name            string  `json:"name" validate:"required,max=200"`
	Description     string  `json:"description" validate:"max=5000"`
	Category        string  `json:"category" validate:"required,category"`
	ImageURL        string  `json:"image_url" validate:"omitempty,url"`
	RetailPrice     float64 `json:"retail_price"`
	DiscountPercent float64 `json:"discount_percent"`
	Stock           int     `json:"stock"`
}

// ProductUpdate is a partial admin edit; nil fields are left unchanged.
// Stock is changed only through stock adjustments so every change is logged.
type ProductUpdate struct {
	Name            *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string  `json:"description" validate:"omitempty,max=5000"`
	Category        *string  `json:"category" validate:"omitempty,category"`
	ImageURL        *string  `json:"image_url" validate:"omitempty,url"`
	RetailPrice     *float64 `json:"retail_price"`
	DiscountPercent *float64 `json:"discount_percent"`
	IsActive        *bool    `json:"is_active"`
}

// ProductFilter narrows List results
type ProductFilter struct {
	Category        string
	Query           string
	IncludeInactive bool
}

// StockDelta is a signed stock change for one product
type StockDelta struct {
	ProductID string
	Delta     int
}

// Load adopts the catalog from the fastest tier that has data.
// A cached snapshot older than the freshness threshold, or a durable snapshot,
// is served immediately and a remote refresh is requested.
func (c *CatalogService) Load(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Load")
	defer span.End()

	if records, at, ok := c.tiers.tryFast(ctx); ok {
		c.adopt(records, at)
		util.CatalogLoadsTotal.WithLabelValues("cache").Inc()
		c.bus.Publish(ctx, events.CatalogReady{Source: "cache", Count: len(records)})
		if c.NeedsRefresh() {
			c.requestRefresh()
		}
		return nil
	}

	if records, ok := c.tiers.tryDurable(ctx); ok {
		c.adopt(records, time.Time{})
		util.CatalogLoadsTotal.WithLabelValues("durable").Inc()
		c.bus.Publish(ctx, events.CatalogReady{Source: "durable", Count: len(records)})
		c.requestRefresh()
		return nil
	}

	var syncedAt time.Time
	records, err := c.tiers.fetchRemote(ctx)
	if err != nil {
		if !errors.Is(err, remote.ErrDisabled) {
			c.logger.Warn("Remote catalog fetch failed, starting empty", zap.Error(err))
		}
		records = []models.Product{}
	} else {
		syncedAt = c.now()
	}
	if records == nil {
		records = []models.Product{}
	}

	c.mu.Lock()
	if err := c.tiers.saveDurable(ctx, records); err != nil {
		c.logger.Error("Failed to persist remote catalog", zap.Error(err))
	}
	c.tiers.saveCache(ctx, records, c.now())
	c.products = cloneProducts(records)
	c.lastSynced = syncedAt
	c.mu.Unlock()

	util.CatalogLoadsTotal.WithLabelValues("remote").Inc()
	c.bus.Publish(ctx, events.CatalogReady{Source: "remote", Count: len(records)})
	return nil
}

func (c *CatalogService) adopt(records []models.Product, syncedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = cloneProducts(records)
	c.lastSynced = syncedAt
}

// NeedsRefresh reports whether the last remote sync is older than the freshness threshold
func (c *CatalogService) NeedsRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Sub(c.lastSynced) > c.policy.Freshness
}

// RefreshRequests delivers explicit refresh requests raised by Load
func (c *CatalogService) RefreshRequests() <-chan struct{} {
	return c.refreshCh
}

func (c *CatalogService) requestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// RefreshFromRemote replaces the catalog with the remote copy. An empty remote result
// changes nothing. Inactive local products missing remotely are kept, since hard
// deletion removes them from the remote store only. Last writer wins.
func (c *CatalogService) RefreshFromRemote(ctx context.Context) (bool, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.RefreshFromRemote")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CatalogRefreshLatency.Observe(time.Since(start).Seconds())
	}()

	records, err := c.tiers.fetchRemote(ctx)
	if errors.Is(err, remote.ErrDisabled) {
		c.mu.Lock()
		c.lastSynced = c.now()
		c.mu.Unlock()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remote catalog fetch failed: %w", err)
	}
	if len(records) == 0 {
		return false, nil
	}

	c.mu.Lock()
	next := cloneProducts(records)
	seen := make(map[string]bool, len(next))
	for _, p := range next {
		seen[p.ID] = true
	}
	for _, p := range c.products {
		if !p.IsActive && !seen[p.ID] {
			next = append(next, p)
		}
	}

	if err := c.tiers.saveDurable(ctx, next); err != nil {
		c.mu.Unlock()
		return false, fmt.Errorf("failed to persist refreshed catalog: %w", err)
	}
	now := c.now()
	c.tiers.saveCache(ctx, next, now)
	c.products = next
	c.lastSynced = now
	c.mu.Unlock()

	c.logger.Info("Catalog refreshed from remote", zap.Int("count", len(next)))
	c.bus.Publish(ctx, events.ProductsUpdated{Source: "remote", Count: len(next)})
	return true, nil
}

// ReloadFromDurable re-adopts the durable snapshot written by another instance
func (c *CatalogService) ReloadFromDurable(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.ReloadFromDurable")
	defer span.End()

	records, ok := c.tiers.tryDurable(ctx)
	if !ok {
		return nil
	}

	c.mu.Lock()
	c.products = cloneProducts(records)
	c.mu.Unlock()

	c.bus.Publish(ctx, events.ProductsUpdated{Source: "peer", Count: len(records)})
	return nil
}

// List returns copies of the products matching filter, in catalog order
func (c *CatalogService) List(filter ProductFilter) []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if !p.IsActive && !filter.IncludeInactive {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Get returns a copy of one product, active or not
func (c *CatalogService) Get(id string) (models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := indexOfProduct(c.products, id); i >= 0 {
		return c.products[i], nil
	}
	return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

// Add creates an active product
func (c *CatalogService) Add(ctx context.Context, in NewProduct) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Add")
	defer span.End()

	if err := checkPricing(in.RetailPrice, in.DiscountPercent); err != nil {
		return models.Product{}, err
	}
	if in.Stock < 0 {
		return models.Product{}, fmt.Errorf("%w: initial stock must not be negative", ErrInvalidQuantity)
	}
	if err := c.validate.Struct(in); err != nil {
		return models.Product{}, fmt.Errorf("%w: %s", ErrValidation, validation.Summary(err))
	}

	now := c.now()
	product := models.Product{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		Category:        in.Category,
		ImageURL:        in.ImageURL,
		RetailPrice:     in.RetailPrice,
		DiscountPercent: in.DiscountPercent,
		CurrentPrice:    CurrentPrice(in.RetailPrice, in.DiscountPercent),
		Stock:           in.Stock,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	changed, err := c.apply(ctx, "add product", func(products []models.Product) ([]models.Product, []string, error) {
		return append(products, product), []string{product.ID}, nil
	})
	if err != nil {
		return models.Product{}, err
	}

	c.logger.Info("Product added", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return changed[0], nil
}

// Update applies a partial edit and recomputes the current price
func (c *CatalogService) Update(ctx context.Context, id string, upd ProductUpdate) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	if err := c.validate.Struct(upd); err != nil {
		return models.Product{}, fmt.Errorf("%w: %s", ErrValidation, validation.Summary(err))
	}

	changed, err := c.apply(ctx, "update product", func(products []models.Product) ([]models.Product, []string, error) {
		i := indexOfProduct(products, id)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		p := products[i]

		if upd.Name != nil {
			p.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Description != nil {
			p.Description = *upd.Description
		}
		if upd.Category != nil {
			p.Category = *upd.Category
		}
		if upd.ImageURL != nil {
			p.ImageURL = *upd.ImageURL
		}
		if upd.RetailPrice != nil {
			p.RetailPrice = *upd.RetailPrice
		}
		if upd.DiscountPercent != nil {
			p.DiscountPercent = *upd.DiscountPercent
		}
		if upd.IsActive != nil {
			p.IsActive = *upd.IsActive
		}
		if err := checkPricing(p.RetailPrice, p.DiscountPercent); err != nil {
			return nil, nil, err
		}

		p.CurrentPrice = CurrentPrice(p.RetailPrice, p.DiscountPercent)
		p.UpdatedAt = c.now()
		products[i] = p
		return products, []string{id}, nil
	})
	if err != nil {
		return models.Product{}, err
	}
	return changed[0], nil
}

// SetDiscount sets discountPercent (0–100) and recomputes the current price
func (c *CatalogService) SetDiscount(ctx context.Context, id string, percent float64) (models.Product, error) {
	if percent < 0 || percent > 100 {
		return models.Product{}, ErrInvalidDiscount
	}
	return c.Update(ctx, id, ProductUpdate{DiscountPercent: &percent})
}

// SetRetailPrice sets the reference price and recomputes the current price
func (c *CatalogService) SetRetailPrice(ctx context.Context, id string, value float64) (models.Product, error) {
	if value < 0 {
		return models.Product{}, ErrInvalidPrice
	}
	return c.Update(ctx, id, ProductUpdate{RetailPrice: &value})
}

// UpdateStock applies delta to one product. A result below zero is rejected with a
// *StockError and nothing changes.
func (c *CatalogService) UpdateStock(ctx context.Context, id string, delta int) (models.Product, error) {
	if _, err := c.applyDeltas(ctx, []StockDelta{{ProductID: id, Delta: delta}}, false); err != nil {
		return models.Product{}, err
	}
	return c.Get(id)
}

// AdjustStock applies a batch of deltas all-or-nothing
func (c *CatalogService) AdjustStock(ctx context.Context, deltas []StockDelta) ([]models.StockUpdate, error) {
	return c.applyDeltas(ctx, deltas, false)
}

// DeductSold applies a batch of sale deductions all-or-nothing and adds the sold
// units to each product's sales count
func (c *CatalogService) DeductSold(ctx context.Context, deltas []StockDelta) ([]models.StockUpdate, error) {
	return c.applyDeltas(ctx, deltas, true)
}

// ReturnSold puts back units previously taken by DeductSold and lowers the sales count
func (c *CatalogService) ReturnSold(ctx context.Context, deltas []StockDelta) ([]models.StockUpdate, error) {
	return c.applyDeltas(ctx, deltas, true)
}

// applyDeltas merges deltas per product, checks every resulting stock first and
// only then mutates. One durable write covers the whole batch.
func (c *CatalogService) applyDeltas(ctx context.Context, deltas []StockDelta, sale bool) ([]models.StockUpdate, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ApplyStockDeltas")
	defer span.End()

	if len(deltas) == 0 {
		return nil, fmt.Errorf("%w: no stock changes", ErrInvalidQuantity)
	}

	merged := make([]StockDelta, 0, len(deltas))
	pos := make(map[string]int, len(deltas))
	for _, d := range deltas {
		if i, ok := pos[d.ProductID]; ok {
			merged[i].Delta += d.Delta
			continue
		}
		pos[d.ProductID] = len(merged)
		merged = append(merged, d)
	}

	var updates []models.StockUpdate
	_, err := c.apply(ctx, "adjust stock", func(products []models.Product) ([]models.Product, []string, error) {
		idx := make([]int, len(merged))
		for n, d := range merged {
			i := indexOfProduct(products, d.ProductID)
			if i < 0 {
				return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, d.ProductID)
			}
			if products[i].Stock+d.Delta < 0 {
				return nil, nil, &StockError{
					ProductID: d.ProductID,
					Available: products[i].Stock,
					Requested: -d.Delta,
				}
			}
			idx[n] = i
		}

		now := c.now()
		ids := make([]string, 0, len(merged))
		updates = make([]models.StockUpdate, 0, len(merged))
		for n, d := range merged {
			p := products[idx[n]]
			prev := p.Stock
			p.Stock += d.Delta
			p.UpdatedAt = now
			// returning sold units is not a restock
			if d.Delta > 0 && !sale {
				restocked := now
				p.LastRestock = &restocked
			}
			if sale {
				p.SalesCount -= d.Delta
				if p.SalesCount < 0 {
					p.SalesCount = 0
				}
			}
			products[idx[n]] = p

			ids = append(ids, p.ID)
			updates = append(updates, models.StockUpdate{
				ProductID:     p.ID,
				ProductName:   p.Name,
				Category:      p.Category,
				PreviousStock: prev,
				NewStock:      p.Stock,
				Quantity:      d.Delta,
			})
		}
		return products, ids, nil
	})
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// Remove soft-deletes a product; it stays in every tier with isActive=false
func (c *CatalogService) Remove(ctx context.Context, id string) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Remove")
	defer span.End()

	changed, err := c.apply(ctx, "remove product", func(products []models.Product) ([]models.Product, []string, error) {
		i := indexOfProduct(products, id)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		products[i].IsActive = false
		products[i].UpdatedAt = c.now()
		return products, []string{id}, nil
	})
	if err != nil {
		return models.Product{}, err
	}
	return changed[0], nil
}

// HardDelete removes a product from the remote store after the typed confirmation
// matches the configured phrase exactly. The local record is kept, soft-deleted.
// Unlike other writes the remote failure is returned, since it is the only effect.
func (c *CatalogService) HardDelete(ctx context.Context, id, confirmation string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.HardDelete")
	defer span.End()

	if confirmation != c.policy.HardDeletePhrase {
		return ErrConfirmationMismatch
	}

	product, err := c.Get(id)
	if err != nil {
		return err
	}
	if product.IsActive {
		if _, err := c.Remove(ctx, id); err != nil {
			return err
		}
	}

	rctx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
	defer cancel()
	if err := c.remote.DeleteProduct(rctx, id); err != nil {
		util.RemoteSyncFailures.WithLabelValues("products", "delete").Inc()
		return fmt.Errorf("remote delete failed: %w", err)
	}

	c.logger.Warn("Product hard-deleted from remote store",
		zap.String("product_id", id),
		zap.String("performed_by", ActorFromContext(ctx)))
	return nil
}

// apply runs fn on a copy of the catalog under the write lock. The durable write
// decides success; cache and remote writes are best-effort.
func (c *CatalogService) apply(
	ctx context.Context,
	op string,
	fn func(products []models.Product) ([]models.Product, []string, error),
) ([]models.Product, error) {
	c.mu.Lock()
	next, ids, err := fn(cloneProducts(c.products))
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if err := c.tiers.saveDurable(ctx, next); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.tiers.saveCache(ctx, next, c.now())
	c.products = next

	changed := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if i := indexOfProduct(next, id); i >= 0 {
			changed = append(changed, next[i])
		}
	}
	c.mu.Unlock()

	for _, p := range changed {
		c.mirror(ctx, p)
	}

	c.bus.Publish(ctx, events.ProductsUpdated{Source: "local", ProductIDs: ids, Count: len(next)})
	return changed, nil
}

// mirror writes one product to the remote store, logging and ignoring failures
func (c *CatalogService) mirror(ctx context.Context, p models.Product) {
	rctx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
	defer cancel()

	if err := c.remote.PutProduct(rctx, p); err != nil {
		util.RemoteSyncFailures.WithLabelValues("products", "put").Inc()
		c.logger.Error("Remote product sync failed",
			zap.String("product_id", p.ID),
			zap.Error(err))
	}
}

func checkPricing(retailPrice, discountPercent float64) error {
	if retailPrice < 0 {
		return ErrInvalidPrice
	}
	if discountPercent < 0 || discountPercent > 100 {
		return ErrInvalidDiscount
	}
	return nil
}

func indexOfProduct(products []models.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneProducts(src []models.Product) []models.Product {
	out := make([]models.Product, len(src))
	copy(out, src)
	return out
}
