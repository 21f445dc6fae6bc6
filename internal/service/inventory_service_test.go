package service

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeductStockFromOrder(t *testing.T) {
	h := newHarness(t)
	ctx := WithActor(context.Background(), "admin@example.com")
	a := h.addProduct(t, "A", models.CategoryBeauty, 10, 5)
	b := h.addProduct(t, "B", models.CategoryBeauty, 20, 8)
	h.published = nil

	order := models.Order{ID: "ORD2501010001", Items: []models.LineItem{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 3},
		{ProductID: a.ID, Quantity: 1},
	}}

	txn, err := h.inventory.DeductStockFromOrder(ctx, order)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(txn.ID, "TXN"))
	assert.Equal(t, models.TransactionOrderDeduction, txn.Type)
	assert.Equal(t, "ORD2501010001", txn.ReferenceID)
	assert.Equal(t, "admin@example.com", txn.PerformedBy)
	require.Len(t, txn.Updates, 2)
	assert.Equal(t, 5, txn.Updates[0].PreviousStock)
	assert.Equal(t, 2, txn.Updates[0].NewStock)
	assert.Equal(t, -3, txn.Updates[0].Quantity)

	gotA, _ := h.catalog.Get(a.ID)
	gotB, _ := h.catalog.Get(b.ID)
	assert.Equal(t, 2, gotA.Stock)
	assert.Equal(t, 5, gotB.Stock)

	log, err := h.inventory.Transactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, txn.ID, log[0].ID)

	assert.Contains(t, h.published, events.Event(events.InventoryRecorded{
		TransactionID: txn.ID,
		Type:          models.TransactionOrderDeduction,
		ReferenceID:   "ORD2501010001",
	}))
}

func TestDeductStockFromOrderChangesNothingOnShortage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.addProduct(t, "A", models.CategoryBeauty, 10, 5)
	b := h.addProduct(t, "B", models.CategoryBeauty, 20, 1)

	order := models.Order{ID: "ORD2501010002", Items: []models.LineItem{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 3},
	}}

	_, err := h.inventory.DeductStockFromOrder(ctx, order)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	gotA, _ := h.catalog.Get(a.ID)
	gotB, _ := h.catalog.Get(b.ID)
	assert.Equal(t, 5, gotA.Stock)
	assert.Equal(t, 1, gotB.Stock)

	log, err := h.inventory.Transactions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestUpdateStockManually(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.addProduct(t, "Novel", models.CategoryBooks, 15, 2)

	txn, err := h.inventory.UpdateStockManually(ctx, p.ID, 10, "", "new shipment")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionManualAdjustment, txn.Type)
	assert.Equal(t, "system", txn.PerformedBy)
	assert.Equal(t, "new shipment", txn.Notes)
	require.Len(t, txn.Updates, 1)
	assert.Equal(t, models.StockUpdate{
		ProductID:     p.ID,
		ProductName:   "Novel",
		Category:      models.CategoryBooks,
		PreviousStock: 2,
		NewStock:      12,
		Quantity:      10,
	}, txn.Updates[0])

	txn, err = h.inventory.UpdateStockManually(ctx, p.ID, -3, "damage", "")
	require.NoError(t, err)
	assert.Equal(t, "damage", txn.Type)

	_, err = h.inventory.UpdateStockManually(ctx, p.ID, -100, "correction", "")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	_, err = h.inventory.UpdateStockManually(ctx, p.ID, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	got, _ := h.catalog.Get(p.ID)
	assert.Equal(t, 9, got.Stock)

	log, err := h.inventory.Transactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "damage", log[0].Type, "newest first")
}

func TestTransactionLogIsCapped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.addProduct(t, "Pen", models.CategoryOther, 1, 0)

	var first, last string
	for i := 0; i < 101; i++ {
		txn, err := h.inventory.UpdateStockManually(ctx, p.ID, 1, "restock", "")
		require.NoError(t, err)
		if i == 0 {
			first = txn.ID
		}
		last = txn.ID
	}

	var stored []models.InventoryTransaction
	_, err := h.kv.Get(ctx, store.KeyInventoryTransactions, &stored)
	require.NoError(t, err)
	assert.Len(t, stored, 100)

	for _, txn := range stored {
		assert.NotEqual(t, first, txn.ID)
	}
	assert.Equal(t, last, stored[len(stored)-1].ID)

	recent, err := h.inventory.Transactions(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
	assert.Equal(t, last, recent[0].ID)
}

func TestTransactionLogWriteFailureKeepsStockChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.addProduct(t, "Pen", models.CategoryOther, 1, 0)
	h.kv.setFailPut(store.KeyInventoryTransactions, true)

	_, err := h.inventory.UpdateStockManually(ctx, p.ID, 4, "", "")
	require.NoError(t, err)

	got, _ := h.catalog.Get(p.ID)
	assert.Equal(t, 4, got.Stock)
	log, err := h.inventory.Transactions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestTransactionLogReadFailureKeepsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.addProduct(t, "Pen", models.CategoryOther, 1, 0)

	for i := 0; i < 5; i++ {
		_, err := h.inventory.UpdateStockManually(ctx, p.ID, 1, "restock", "")
		require.NoError(t, err)
	}

	h.kv.failNextGet(store.KeyInventoryTransactions)
	_, err := h.inventory.UpdateStockManually(ctx, p.ID, 1, "restock", "")
	require.NoError(t, err)

	got, _ := h.catalog.Get(p.ID)
	assert.Equal(t, 6, got.Stock)

	log, err := h.inventory.Transactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, log, 5, "earlier entries survive an unreadable log")

	_, err = h.inventory.UpdateStockManually(ctx, p.ID, 1, "restock", "")
	require.NoError(t, err)
	log, err = h.inventory.Transactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, log, 6)
}

func TestRestoreStockForOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.addProduct(t, "Ball", models.CategorySports, 12, 6)
	order := models.Order{ID: "ORD2501010003", Items: []models.LineItem{{ProductID: p.ID, Quantity: 4}}}

	_, err := h.inventory.DeductStockFromOrder(ctx, order)
	require.NoError(t, err)
	txn, err := h.inventory.RestoreStockForOrder(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionOrderReversal, txn.Type)

	got, _ := h.catalog.Get(p.ID)
	assert.Equal(t, 6, got.Stock)
	assert.Equal(t, 0, got.SalesCount)
	assert.Nil(t, got.LastRestock, "a reversal is not a restock")
}

func TestInventoryReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addProduct(t, "Laptop", models.CategoryElectronics, 1000, 20)
	h.addProduct(t, "Cable", models.CategoryElectronics, 5.5, 4)
	h.addProduct(t, "Shirt", models.CategoryClothing, 25, 0)
	h.addProduct(t, "Socks", models.CategoryClothing, 3, 10)
	retired := h.addProduct(t, "Retired", models.CategoryClothing, 100, 100)
	_, err := h.catalog.Remove(ctx, retired.ID)
	require.NoError(t, err)

	report := h.inventory.Report(ctx)

	assert.Equal(t, 4, report.Products)
	assert.Equal(t, 34, report.TotalStock)
	assert.Equal(t, 20052.0, report.TotalValue)
	assert.Equal(t, 2, report.LowStock)
	assert.Equal(t, 1, report.OutOfStock)
	assert.Equal(t, 1, report.Healthy)

	assert.Equal(t, models.CategoryReport{
		Products: 2, TotalStock: 24, TotalValue: 20022, LowStock: 1, Healthy: 1,
	}, report.ByCategory[models.CategoryElectronics])
	assert.Equal(t, models.CategoryReport{
		Products: 2, TotalStock: 10, TotalValue: 30, LowStock: 1, OutOfStock: 1,
	}, report.ByCategory[models.CategoryClothing])
	assert.NotContains(t, report.ByCategory, models.CategoryBooks)
}
