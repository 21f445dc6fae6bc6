package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/validation"

	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// allowedTransitions lists every legal status move. Completed is reachable only
// from shipped, so an order never finishes without its stock deduction.
var allowedTransitions = map[string][]string{
	models.OrderStatusPending: {models.OrderStatusPaid, models.OrderStatusShipped},
	models.OrderStatusPaid:    {models.OrderStatusShipped},
	models.OrderStatusShipped: {models.OrderStatusCompleted},
}

var knownStatuses = map[string]bool{
	models.OrderStatusPending:   true,
	models.OrderStatusPaid:      true,
	models.OrderStatusShipped:   true,
	models.OrderStatusCompleted: true,
}

// OrderService is the order ledger
type OrderService struct {
	mu     sync.Mutex
	orders []models.Order
	// shipping holds ids whose stock deduction is running outside the lock
	shipping map[string]bool

	kv        store.KV
	remote    RemoteStore
	inventory *InventoryService
	carts     *CartService
	bus       *events.Bus
	policy    Policy
	validate  *validatorv10.Validate
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderService creates a new order ledger
func NewOrderService(
	kv store.KV,
	remoteStore RemoteStore,
	inventory *InventoryService,
	carts *CartService,
	bus *events.Bus,
	policy Policy,
) *OrderService {
	return &OrderService{
		orders:    []models.Order{},
		shipping:  make(map[string]bool),
		kv:        kv,
		remote:    remoteStore,
		inventory: inventory,
		carts:     carts,
		bus:       bus,
		policy:    policy,
		validate:  validation.New(),
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// CustomerData is the checkout form
type CustomerData struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=6,max=32"`
	Address string `json:"address" validate:"required,max=1000"`
	Notes   string `json:"notes" validate:"max=2000"`
}

// Load restores the ledger from the durable store
func (s *OrderService) Load(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "OrderService.Load")
	defer span.End()

	var orders []models.Order
	if _, err := s.kv.Get(ctx, store.KeyOrders, &orders); err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}

	s.mu.Lock()
	s.orders = orders
	s.mu.Unlock()

	s.logger.Info("Order ledger loaded", zap.Int("count", len(orders)))
	return nil
}

// Checkout turns the cart into a pending order and clears the cart
func (s *OrderService) Checkout(ctx context.Context, cartID string, customer CustomerData) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout")
	defer span.End()

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	order, err := s.CreateOrder(ctx, customer, cart.Items)
	if err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, cartID); err != nil {
		s.logger.Error("Failed to clear cart after checkout",
			zap.String("cart_id", cartID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
	return order, nil
}

// CreateOrder records a pending order for a snapshot of cart lines.
// Names and prices are copied so later catalog edits do not change the order.
func (s *OrderService) CreateOrder(ctx context.Context, customer CustomerData, items []models.CartItem) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %s has quantity %d", ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
	}
	if err := s.validate.Struct(customer); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, validation.Summary(err))
	}

	now := s.now()
	id, err := s.nextOrderID(ctx, now)
	if err != nil {
		return nil, err
	}

	lines := lineItems(items)
	totals := s.policy.ComputeTotals(lines, 0, 0)

	order := models.Order{
		ID:              id,
		CustomerName:    strings.TrimSpace(customer.Name),
		CustomerEmail:   strings.TrimSpace(customer.Email),
		CustomerPhone:   strings.TrimSpace(customer.Phone),
		ShippingAddress: strings.TrimSpace(customer.Address),
		Items:           lines,
		Subtotal:        totals.Subtotal,
		ShippingCost:    totals.ShippingCost,
		Discount:        totals.Discount,
		Tax:             totals.Tax,
		TotalAmount:     totals.TotalAmount,
		Status:          models.OrderStatusPending,
		Notes:           customer.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.mu.Lock()
	next := append(cloneOrders(s.orders), order)
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.orders = next
	s.mu.Unlock()

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Float64("total_amount", order.TotalAmount))

	s.mirror(ctx, order)
	s.bus.Publish(ctx, events.OrderCreated{OrderID: order.ID})

	return &order, nil
}

// nextOrderID is ORD + yyMMdd of createdAt + the durable counter, zero-padded to four digits
func (s *OrderService) nextOrderID(ctx context.Context, createdAt time.Time) (string, error) {
	n, err := s.kv.Incr(ctx, store.KeyOrderIDCounter)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order id: %w", err)
	}
	return fmt.Sprintf("ORD%s%04d", createdAt.Format("060102"), n), nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOfOrder(s.orders, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	order := s.orders[i]
	return &order, nil
}

// ListOrders returns orders newest first, optionally filtered by status
func (s *OrderService) ListOrders(status string) ([]models.Order, error) {
	if status != "" {
		if !knownStatuses[status] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		if status == "" || s.orders[i].Status == status {
			out = append(out, s.orders[i])
		}
	}
	return out, nil
}

// UpdateOrderStatus moves an order forward in its lifecycle. Moving to shipped goes
// through MarkAsShipped so stock is always deducted exactly once.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string, shippingDate *time.Time) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	if !knownStatuses[status] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if status == models.OrderStatusShipped {
		return s.MarkAsShipped(ctx, id, shippingDate)
	}

	s.mu.Lock()
	i := indexOfOrder(s.orders, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if s.shipping[id] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderBusy, id)
	}
	from := s.orders[i].Status
	if err := checkTransition(from, status); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	next := cloneOrders(s.orders)
	next[i].Status = status
	next[i].UpdatedAt = s.now()
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.orders = next
	order := next[i]
	s.mu.Unlock()

	s.transitioned(ctx, order, from)
	return &order, nil
}

// MarkAsShipped deducts every line's quantity from stock and then records the
// shipment. If any product cannot cover its line nothing is deducted and the order
// keeps its status. shippingDate defaults to now.
//
// The deduction runs without the ledger lock; the order is marked in flight so a
// concurrent ship, status change or delete of the same order gets ErrOrderBusy.
func (s *OrderService) MarkAsShipped(ctx context.Context, id string, shippingDate *time.Time) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.MarkAsShipped")
	defer span.End()

	s.mu.Lock()
	i := indexOfOrder(s.orders, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if s.shipping[id] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrOrderBusy, id)
	}
	order := s.orders[i]
	from := order.Status
	if err := checkTransition(from, models.OrderStatusShipped); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.shipping[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.shipping, id)
		s.mu.Unlock()
	}()

	if _, err := s.inventory.DeductStockFromOrder(ctx, order); err != nil {
		util.OrderTransitionsRejected.WithLabelValues("stock").Inc()
		return nil, fmt.Errorf("cannot ship order %s: %w", id, err)
	}

	shipped := s.now()
	if shippingDate != nil {
		shipped = *shippingDate
	}

	s.mu.Lock()
	// a ledger reload may have reordered the slice while the lock was released
	i = indexOfOrder(s.orders, id)
	if i < 0 {
		s.mu.Unlock()
		s.compensateDeduction(ctx, order)
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	next := cloneOrders(s.orders)
	next[i].Status = models.OrderStatusShipped
	next[i].ShippingDate = &shipped
	next[i].UpdatedAt = s.now()
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		s.compensateDeduction(ctx, order)
		return nil, err
	}
	s.orders = next
	order = next[i]
	s.mu.Unlock()

	s.transitioned(ctx, order, from)
	return &order, nil
}

// compensateDeduction puts back the stock taken for an order whose shipment could not be recorded
func (s *OrderService) compensateDeduction(ctx context.Context, order models.Order) {
	if _, err := s.inventory.RestoreStockForOrder(ctx, order); err != nil {
		s.logger.Error("Failed to compensate stock deduction",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

// DeleteOrder removes an order from the ledger. Stock is not restored.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	s.mu.Lock()
	i := indexOfOrder(s.orders, id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if s.shipping[id] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOrderBusy, id)
	}

	next := cloneOrders(s.orders)
	next = append(next[:i], next[i+1:]...)
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.orders = next
	s.mu.Unlock()

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted",
		zap.String("order_id", id),
		zap.String("performed_by", ActorFromContext(ctx)))

	rctx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
	defer cancel()
	if err := s.remote.DeleteOrder(rctx, id); err != nil {
		util.RemoteSyncFailures.WithLabelValues("orders", "delete").Inc()
		s.logger.Error("Remote order delete failed", zap.String("order_id", id), zap.Error(err))
	}

	s.bus.Publish(ctx, events.OrderDeleted{OrderID: id})
	return nil
}

func (s *OrderService) transitioned(ctx context.Context, order models.Order, from string) {
	util.OrderTransitionsTotal.WithLabelValues(order.Status).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", from),
		zap.String("to", order.Status))

	s.mirror(ctx, order)
	s.bus.Publish(ctx, events.OrderStatusChanged{OrderID: order.ID, From: from, To: order.Status})
}

// persist overwrites the whole ledger in the durable store
func (s *OrderService) persist(ctx context.Context, orders []models.Order) error {
	if err := s.kv.Put(ctx, store.KeyOrders, orders); err != nil {
		util.LocalWriteFailures.WithLabelValues("durable", store.KeyOrders).Inc()
		return fmt.Errorf("failed to persist orders: %w", err)
	}
	return nil
}

func (s *OrderService) mirror(ctx context.Context, order models.Order) {
	rctx, cancel := context.WithTimeout(ctx, remoteWriteTimeout)
	defer cancel()

	if err := s.remote.PutOrder(rctx, order); err != nil {
		util.RemoteSyncFailures.WithLabelValues("orders", "put").Inc()
		s.logger.Error("Remote order sync failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

func checkTransition(from, to string) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	util.OrderTransitionsRejected.WithLabelValues("not_allowed").Inc()
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func indexOfOrder(orders []models.Order, id string) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneOrders(src []models.Order) []models.Order {
	out := make([]models.Order, len(src), len(src)+1)
	copy(out, src)
	return out
}
