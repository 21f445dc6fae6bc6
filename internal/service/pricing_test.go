package service

import (
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCurrentPrice(t *testing.T) {
	tests := []struct {
		retail   float64
		discount float64
		want     float64
	}{
		{100, 0, 100},
		{100, 10, 90},
		{19.99, 15, 16.99},
		{80, 100, 0},
		{0, 50, 0},
		{33.33, 33.33, 22.22},
	}

	for _, tt := range tests {
		got := CurrentPrice(tt.retail, tt.discount)
		assert.InDelta(t, tt.want, got, 0.005, "retail=%v discount=%v", tt.retail, tt.discount)
		assert.GreaterOrEqual(t, got, 0.0)
	}
}

func TestShippingRule(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 50.0, p.ShippingCost(0))
	assert.Equal(t, 50.0, p.ShippingCost(999.99))
	assert.Equal(t, 0.0, p.ShippingCost(1000))
	assert.Equal(t, 0.0, p.ShippingCost(1200))
}

func TestComputeTotals(t *testing.T) {
	p := DefaultPolicy()

	below := p.ComputeTotals([]models.LineItem{{Price: 600, Quantity: 1}}, 0, 0)
	assert.Equal(t, Totals{Subtotal: 600, ShippingCost: 50, TotalAmount: 650}, below)

	above := p.ComputeTotals([]models.LineItem{{Price: 1200, Quantity: 1}}, 0, 0)
	assert.Equal(t, Totals{Subtotal: 1200, ShippingCost: 0, TotalAmount: 1200}, above)

	mixed := p.ComputeTotals([]models.LineItem{
		{Price: 0.1, Quantity: 3},
		{Price: 19.99, Quantity: 2},
	}, 0, 0)
	assert.Equal(t, 40.28, mixed.Subtotal)
	assert.Equal(t, 90.28, mixed.TotalAmount)
}
