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
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService keeps the stock audit log in step with catalog stock changes
type InventoryService struct {
	mu      sync.Mutex
	catalog *CatalogService
	kv      store.KV
	bus     *events.Bus
	policy  Policy
	now     func() time.Time
	logger  *zap.Logger
}

// NewInventoryService creates a new inventory reconciler
func NewInventoryService(catalog *CatalogService, kv store.KV, bus *events.Bus, policy Policy) *InventoryService {
	return &InventoryService{
		catalog: catalog,
		kv:      kv,
		bus:     bus,
		policy:  policy,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// DeductStockFromOrder removes every line item's quantity from stock.
// Lines are checked before anything is written: if one product cannot cover its
// quantity nothing changes and a *StockError is returned.
func (s *InventoryService) DeductStockFromOrder(ctx context.Context, order models.Order) (*models.InventoryTransaction, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.DeductStockFromOrder")
	defer span.End()

	if len(order.Items) == 0 {
		return nil, fmt.Errorf("%w: order %s has no items", ErrInvalidQuantity, order.ID)
	}

	deltas := make([]StockDelta, 0, len(order.Items))
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %s has quantity %d", ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
		deltas = append(deltas, StockDelta{ProductID: item.ProductID, Delta: -item.Quantity})
	}

	updates, err := s.catalog.DeductSold(ctx, deltas)
	if err != nil {
		util.StockDeductionFailures.WithLabelValues(deductionFailureReason(err)).Inc()
		s.logger.Error("Stock deduction rejected",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, err
	}

	txn := models.InventoryTransaction{
		ID:          s.newTransactionID(),
		Type:        models.TransactionOrderDeduction,
		Timestamp:   s.now(),
		PerformedBy: ActorFromContext(ctx),
		ReferenceID: order.ID,
		Notes:       fmt.Sprintf("Stock deducted for order %s", order.ID),
		Updates:     updates,
	}
	s.record(ctx, txn)

	return &txn, nil
}

// RestoreStockForOrder returns an order's quantities to stock, recording an
// order_reversal transaction
func (s *InventoryService) RestoreStockForOrder(ctx context.Context, order models.Order) (*models.InventoryTransaction, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.RestoreStockForOrder")
	defer span.End()

	deltas := make([]StockDelta, 0, len(order.Items))
	for _, item := range order.Items {
		deltas = append(deltas, StockDelta{ProductID: item.ProductID, Delta: item.Quantity})
	}

	updates, err := s.catalog.ReturnSold(ctx, deltas)
	if err != nil {
		return nil, err
	}

	txn := models.InventoryTransaction{
		ID:          s.newTransactionID(),
		Type:        models.TransactionOrderReversal,
		Timestamp:   s.now(),
		PerformedBy: ActorFromContext(ctx),
		ReferenceID: order.ID,
		Notes:       fmt.Sprintf("Stock restored for order %s", order.ID),
		Updates:     updates,
	}
	s.record(ctx, txn)

	return &txn, nil
}

// UpdateStockManually applies a signed correction to one product. reason becomes the
// transaction type and defaults to manual_adjustment.
func (s *InventoryService) UpdateStockManually(
	ctx context.Context,
	productID string,
	quantity int,
	reason string,
	notes string,
) (*models.InventoryTransaction, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.UpdateStockManually")
	defer span.End()

	if quantity == 0 {
		return nil, fmt.Errorf("%w: adjustment must not be zero", ErrInvalidQuantity)
	}

	updates, err := s.catalog.AdjustStock(ctx, []StockDelta{{ProductID: productID, Delta: quantity}})
	if err != nil {
		return nil, err
	}

	txnType := strings.TrimSpace(reason)
	if txnType == "" {
		txnType = models.TransactionManualAdjustment
	}

	txn := models.InventoryTransaction{
		ID:          s.newTransactionID(),
		Type:        txnType,
		Timestamp:   s.now(),
		PerformedBy: ActorFromContext(ctx),
		Notes:       notes,
		Updates:     updates,
	}
	s.record(ctx, txn)

	return &txn, nil
}

// Transactions returns up to limit log entries, newest first. limit <= 0 returns all.
func (s *InventoryService) Transactions(ctx context.Context, limit int) ([]models.InventoryTransaction, error) {
	s.mu.Lock()
	log, err := s.readLog(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]models.InventoryTransaction, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Report aggregates stock over active products, overall and per category
func (s *InventoryService) Report(ctx context.Context) models.InventoryReport {
	_, span := util.StartSpan(ctx, "InventoryService.Report")
	defer span.End()

	type tally struct {
		report models.CategoryReport
		value  decimal.Decimal
	}

	var total tally
	byCategory := make(map[string]*tally)

	for _, p := range s.catalog.List(ProductFilter{}) {
		cat, ok := byCategory[p.Category]
		if !ok {
			cat = &tally{}
			byCategory[p.Category] = cat
		}
		for _, t := range []*tally{&total, cat} {
			t.report.Products++
			t.report.TotalStock += p.Stock
			t.value = t.value.Add(stockValue(p))
			switch {
			case p.Stock == 0:
				t.report.OutOfStock++
			case p.Stock <= s.policy.LowStockThreshold:
				t.report.LowStock++
			default:
				t.report.Healthy++
			}
		}
	}

	report := models.InventoryReport{
		CategoryReport: total.report,
		ByCategory:     make(map[string]models.CategoryReport, len(byCategory)),
		GeneratedAt:    s.now(),
	}
	report.TotalValue = total.value.Round(2).InexactFloat64()
	for name, t := range byCategory {
		r := t.report
		r.TotalValue = t.value.Round(2).InexactFloat64()
		report.ByCategory[name] = r
	}
	return report
}

// record appends txn to the capped log. Stock has already changed at this point,
// so a failed log read or write is logged and counted rather than returned. A failed
// read skips the write: rewriting the key from an empty list would drop older entries.
func (s *InventoryService) record(ctx context.Context, txn models.InventoryTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.readLog(ctx)
	if err != nil {
		util.LocalWriteFailures.WithLabelValues("durable", store.KeyInventoryTransactions).Inc()
		s.logger.Error("Inventory log unreadable, transaction not recorded",
			zap.String("transaction_id", txn.ID),
			zap.Error(err))
		return
	}

	log = append(log, txn)
	if capacity := s.policy.TransactionLogCapacity; capacity > 0 && len(log) > capacity {
		log = log[len(log)-capacity:]
	}

	if err := s.kv.Put(ctx, store.KeyInventoryTransactions, log); err != nil {
		util.LocalWriteFailures.WithLabelValues("durable", store.KeyInventoryTransactions).Inc()
		s.logger.Error("Failed to persist inventory transaction",
			zap.String("transaction_id", txn.ID),
			zap.Error(err))
		return
	}

	util.StockAdjustmentsTotal.WithLabelValues(txn.Type).Inc()
	s.bus.Publish(ctx, events.InventoryRecorded{
		TransactionID: txn.ID,
		Type:          txn.Type,
		ReferenceID:   txn.ReferenceID,
	})
}

func (s *InventoryService) readLog(ctx context.Context) ([]models.InventoryTransaction, error) {
	var log []models.InventoryTransaction
	if _, err := s.kv.Get(ctx, store.KeyInventoryTransactions, &log); err != nil {
		return nil, fmt.Errorf("failed to read inventory log: %w", err)
	}
	return log, nil
}

func (s *InventoryService) newTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "TXN" + s.now().Format("060102") + "-" + suffix
}

func deductionFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	default:
		return "error"
	}
}
