package service

import (
	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CurrentPrice applies discountPercent to retailPrice, rounded to cents and clamped at zero
func CurrentPrice(retailPrice, discountPercent float64) float64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPercent).Div(hundred))
	price := decimal.NewFromFloat(retailPrice).Mul(factor).Round(2)
	if price.IsNegative() {
		return 0
	}
	return price.InexactFloat64()
}

// ShippingCost is free at or above the threshold, otherwise the flat fee
func (p Policy) ShippingCost(subtotal float64) float64 {
	if decimal.NewFromFloat(subtotal).GreaterThanOrEqual(decimal.NewFromFloat(p.FreeShippingThreshold)) {
		return 0
	}
	return p.ShippingFee
}

// Totals is the money breakdown of a set of line items
type Totals struct {
	Subtotal     float64 `json:"subtotal"`
	ShippingCost float64 `json:"shipping_cost"`
	Discount     float64 `json:"discount"`
	Tax          float64 `json:"tax"`
	TotalAmount  float64 `json:"total_amount"`
}

// ComputeTotals sums price × quantity and applies the shipping rule.
// totalAmount = subtotal + shippingCost - discount + tax
func (p Policy) ComputeTotals(items []models.LineItem, discount, tax float64) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shipping := decimal.NewFromFloat(p.ShippingCost(subtotal.InexactFloat64()))
	total := subtotal.Add(shipping).Sub(decimal.NewFromFloat(discount)).Add(decimal.NewFromFloat(tax)).Round(2)

	return Totals{
		Subtotal:     subtotal.InexactFloat64(),
		ShippingCost: shipping.InexactFloat64(),
		Discount:     discount,
		Tax:          tax,
		TotalAmount:  total.InexactFloat64(),
	}
}

// stockValue is currentPrice × stock
func stockValue(p models.Product) decimal.Decimal {
	return decimal.NewFromFloat(p.CurrentPrice).Mul(decimal.NewFromInt(int64(p.Stock)))
}
