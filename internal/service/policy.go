package service

import "time"

// Policy holds the business constants shared by the catalog, ledger and reconciler
type Policy struct {
	CacheValidity          time.Duration
	Freshness              time.Duration
	FreeShippingThreshold  float64
	ShippingFee            float64
	LowStockThreshold      int
	TransactionLogCapacity int
	HardDeletePhrase       string
}

// DefaultPolicy returns the storefront's standard constants
func DefaultPolicy() Policy {
	return Policy{
		CacheValidity:          time.Hour,
		Freshness:              5 * time.Minute,
		FreeShippingThreshold:  1000,
		ShippingFee:            50,
		LowStockThreshold:      10,
		TransactionLogCapacity: 100,
		HardDeletePhrase:       "DELETE PERMANENTLY",
	}
}
