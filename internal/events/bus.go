package events

import (
	"context"
	"sync"

	"storefront/internal/models"
)

// Event is a typed notification published on the bus
type Event interface {
	Name() string
}

// CatalogReady is published once the catalog has been adopted from any tier
type CatalogReady struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// ProductsUpdated is published after every catalog mutation or refresh
type ProductsUpdated struct {
	Source     string   `json:"source"`
	ProductIDs []string `json:"product_ids,omitempty"`
	Count      int      `json:"count"`
}

// OrderCreated is published after a new order is persisted
type OrderCreated struct {
	OrderID string `json:"order_id"`
}

// OrderStatusChanged is published after a status transition is persisted
type OrderStatusChanged struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// OrderDeleted is published after an order is removed from the ledger
type OrderDeleted struct {
	OrderID string `json:"order_id"`
}

// InventoryRecorded is published after a transaction is appended to the log
type InventoryRecorded struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	ReferenceID   string `json:"reference_id,omitempty"`
}

func (CatalogReady) Name() string       { return models.EventTypeCatalogReady }
func (ProductsUpdated) Name() string    { return models.EventTypeProductsUpdated }
func (OrderCreated) Name() string       { return models.EventTypeOrderCreated }
func (OrderStatusChanged) Name() string { return models.EventTypeOrderStatusChanged }
func (OrderDeleted) Name() string       { return models.EventTypeOrderDeleted }
func (InventoryRecorded) Name() string  { return models.EventTypeInventoryRecorded }

// Handler receives published events
type Handler func(ctx context.Context, event Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe hub
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	byName map[string][]subscription
	all    []subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{byName: make(map[string][]subscription)}
}

// Subscribe registers a handler for one event name and returns its cancel func
func (b *Bus) Subscribe(name string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byName[name] = append(b.byName[name], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byName[name] = without(b.byName[name], id)
	}
}

// SubscribeAll registers a handler for every event
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = without(b.all, id)
	}
}

// Publish delivers the event to named subscribers first, then catch-all ones.
// A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byName[event.Name()])+len(b.all))
	for _, s := range b.byName[event.Name()] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.all {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

type peerKey struct{}

// WithPeerOrigin marks ctx as handling a notification received from another instance
func WithPeerOrigin(ctx context.Context) context.Context {
	return context.WithValue(ctx, peerKey{}, true)
}

// FromPeer reports whether ctx was marked by WithPeerOrigin
func FromPeer(ctx context.Context) bool {
	v, _ := ctx.Value(peerKey{}).(bool)
	return v
}
