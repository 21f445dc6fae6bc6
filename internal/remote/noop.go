package remote

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// ErrDisabled is returned by Noop reads.
var ErrDisabled = errors.New("remote store disabled")

// Noop stands in when no remote store is configured: writes succeed silently,
// reads report ErrDisabled so the catalog keeps its local tiers.
type Noop struct{}

func (Noop) ListProducts(context.Context) ([]models.Product, error) { return nil, ErrDisabled }
func (Noop) PutProduct(context.Context, models.Product) error       { return nil }
func (Noop) DeleteProduct(context.Context, string) error            { return nil }
func (Noop) PutOrder(context.Context, models.Order) error           { return nil }
func (Noop) DeleteOrder(context.Context, string) error              { return nil }
