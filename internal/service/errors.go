package service

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidDiscount      = errors.New("discount percent must be between 0 and 100")
	ErrInvalidPrice         = errors.New("price must not be negative")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidStatus        = errors.New("unknown order status")
	ErrInvalidTransition    = errors.New("order status transition not allowed")
	ErrOrderBusy            = errors.New("order is being updated")
	ErrConfirmationMismatch = errors.New("confirmation phrase does not match")
	ErrProductInactive      = errors.New("product is not available")
	ErrValidation           = errors.New("validation failed")
)

// StockError reports a stock change that would drive a product negative
type StockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%d, requested=%d",
		e.ProductID, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
