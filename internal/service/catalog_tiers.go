package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ProductCache is the time-boxed tier holding the whole catalog
type ProductCache interface {
	GetProducts(ctx context.Context) (*models.ProductsCache, error)
	SetProducts(ctx context.Context, records []models.Product, at time.Time) error
}

// RemoteStore is the optional eventually-consistent mirror of products and orders
type RemoteStore interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	PutProduct(ctx context.Context, product models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	PutOrder(ctx context.Context, order models.Order) error
	DeleteOrder(ctx context.Context, id string) error
}

// catalogTiers wraps the three persistence tiers of the catalog, fastest first.
// Read failures on the local tiers are logged and treated as misses.
type catalogTiers struct {
	cache    ProductCache
	kv       store.KV
	remote   RemoteStore
	validity time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// tryFast returns the cached snapshot when present, non-empty and inside the validity window
func (t *catalogTiers) tryFast(ctx context.Context) ([]models.Product, time.Time, bool) {
	if t.cache == nil {
		return nil, time.Time{}, false
	}

	cached, err := t.cache.GetProducts(ctx)
	if err != nil {
		t.logger.Warn("Products cache read failed", zap.Error(err))
		return nil, time.Time{}, false
	}
	if cached == nil || len(cached.Records) == 0 {
		return nil, time.Time{}, false
	}
	if t.validity > 0 && t.now().Sub(cached.Timestamp) > t.validity {
		return nil, time.Time{}, false
	}
	return cached.Records, cached.Timestamp, true
}

// tryDurable returns the durable snapshot; an empty but present list counts as found
func (t *catalogTiers) tryDurable(ctx context.Context) ([]models.Product, bool) {
	var products []models.Product
	found, err := t.kv.Get(ctx, store.KeyProducts, &products)
	if err != nil {
		t.logger.Error("Durable products read failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, true
}

func (t *catalogTiers) fetchRemote(ctx context.Context) ([]models.Product, error) {
	return t.remote.ListProducts(ctx)
}

func (t *catalogTiers) saveDurable(ctx context.Context, products []models.Product) error {
	if err := t.kv.Put(ctx, store.KeyProducts, products); err != nil {
		util.LocalWriteFailures.WithLabelValues("durable", store.KeyProducts).Inc()
		return err
	}
	return nil
}

func (t *catalogTiers) saveCache(ctx context.Context, products []models.Product, at time.Time) {
	if t.cache == nil {
		return
	}
	if err := t.cache.SetProducts(ctx, products, at); err != nil {
		util.LocalWriteFailures.WithLabelValues("cache", "products_cache").Inc()
		t.logger.Warn("Products cache write failed", zap.Error(err))
	}
}
