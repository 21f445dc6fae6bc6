package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeCache struct {
	mu       sync.Mutex
	snapshot *models.ProductsCache
	setErr   error
	sets     int
}

func (f *fakeCache) GetProducts(context.Context) (*models.ProductsCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return nil, nil
	}
	cp := *f.snapshot
	cp.Records = cloneProducts(f.snapshot.Records)
	return &cp, nil
}

func (f *fakeCache) SetProducts(_ context.Context, records []models.Product, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.snapshot = &models.ProductsCache{Records: cloneProducts(records), Timestamp: at}
	return nil
}

type fakeRemote struct {
	mu        sync.Mutex
	products  []models.Product
	orders    map[string]models.Order
	listErr   error
	putErr    error
	deleteErr error
	deleted   []string
	// onPutProduct runs before each product write, outside the fake's lock
	onPutProduct func()
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{orders: make(map[string]models.Order)}
}

func (f *fakeRemote) ListProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return cloneProducts(f.products), nil
}

func (f *fakeRemote) PutProduct(_ context.Context, p models.Product) error {
	f.mu.Lock()
	hook := f.onPutProduct
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if i := indexOfProduct(f.products, p.ID); i >= 0 {
		f.products[i] = p
		return nil
	}
	f.products = append(f.products, p)
	return nil
}

func (f *fakeRemote) DeleteProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if i := indexOfProduct(f.products, id); i >= 0 {
		f.products = append(f.products[:i], f.products[i+1:]...)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRemote) PutOrder(_ context.Context, o models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.orders[o.ID] = o
	return nil
}

func (f *fakeRemote) DeleteOrder(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeRemote) product(id string) (models.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := indexOfProduct(f.products, id); i >= 0 {
		return f.products[i], true
	}
	return models.Product{}, false
}

// flakyKV fails Put for the keys listed in failPut and the next Get of the keys in failGetOnce
type flakyKV struct {
	*store.MemoryStore
	mu          sync.Mutex
	failPut     map[string]bool
	failGetOnce map[string]bool
}

func newFlakyKV() *flakyKV {
	return &flakyKV{
		MemoryStore: store.NewMemoryStore(),
		failPut:     make(map[string]bool),
		failGetOnce: make(map[string]bool),
	}
}

func (f *flakyKV) failNextGet(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGetOnce[key] = true
}

func (f *flakyKV) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	f.mu.Lock()
	fail := f.failGetOnce[key]
	delete(f.failGetOnce, key)
	f.mu.Unlock()
	if fail {
		return false, errBoom
	}
	return f.MemoryStore.Get(ctx, key, dst)
}

func (f *flakyKV) setFailPut(key string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut[key] = fail
}

func (f *flakyKV) Put(ctx context.Context, key string, value interface{}) error {
	f.mu.Lock()
	fail := f.failPut[key]
	f.mu.Unlock()
	if fail {
		return errBoom
	}
	return f.MemoryStore.Put(ctx, key, value)
}

type harness struct {
	kv        *flakyKV
	cache     *fakeCache
	remote    *fakeRemote
	bus       *events.Bus
	published []events.Event
	catalog   *CatalogService
	inventory *InventoryService
	carts     *CartService
	orders    *OrderService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		kv:     newFlakyKV(),
		cache:  &fakeCache{},
		remote: newFakeRemote(),
		bus:    events.NewBus(),
	}
	h.bus.SubscribeAll(func(_ context.Context, e events.Event) {
		h.published = append(h.published, e)
	})

	policy := DefaultPolicy()
	h.catalog = NewCatalogService(h.kv, h.cache, h.remote, h.bus, policy)
	h.inventory = NewInventoryService(h.catalog, h.kv, h.bus, policy)
	h.carts = NewCartService(h.catalog, h.kv, policy)
	h.orders = NewOrderService(h.kv, h.remote, h.inventory, h.carts, h.bus, policy)
	return h
}

func (h *harness) addProduct(t *testing.T, name, category string, price float64, stock int) models.Product {
	t.Helper()
	p, err := h.catalog.Add(context.Background(), NewProduct{
		Name:        name,
		Category:    category,
		RetailPrice: price,
		Stock:       stock,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) eventNames() []string {
	names := make([]string, 0, len(h.published))
	for _, e := range h.published {
		names = append(names, e.Name())
	}
	return names
}

func customer() CustomerData {
	return CustomerData{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Phone:   "+44 20 7946 0000",
		Address: "12 St James's Square, London",
	}
}
