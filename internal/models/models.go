package models

import "time"

// Product represents a catalog record
type Product struct {
	ID              string     `json:"id" dynamodbav:"id"`
	Name            string     `json:"name" dynamodbav:"name"`
	Description     string     `json:"description" dynamodbav:"description"`
	Category        string     `json:"category" dynamodbav:"category"`
	ImageURL        string     `json:"image_url,omitempty" dynamodbav:"image_url,omitempty"`
	RetailPrice     float64    `json:"retail_price" dynamodbav:"retail_price"`
	CurrentPrice    float64    `json:"current_price" dynamodbav:"current_price"`
	DiscountPercent float64    `json:"discount_percent" dynamodbav:"discount_percent"`
	Stock           int        `json:"stock" dynamodbav:"stock"`
	IsActive        bool       `json:"is_active" dynamodbav:"is_active"`
	SalesCount      int        `json:"sales_count" dynamodbav:"sales_count"`
	LastRestock     *time.Time `json:"last_restock,omitempty" dynamodbav:"last_restock,omitempty"`
	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// Product categories
const (
	CategoryElectronics = "electronics"
	CategoryClothing    = "clothing"
	CategoryHome        = "home"
	CategoryBeauty      = "beauty"
	CategorySports      = "sports"
	CategoryBooks       = "books"
	CategoryToys        = "toys"
	CategoryFood        = "food"
	CategoryOther       = "other"
)

// Categories lists the fixed category set in display order
var Categories = []string{
	CategoryElectronics,
	CategoryClothing,
	CategoryHome,
	CategoryBeauty,
	CategorySports,
	CategoryBooks,
	CategoryToys,
	CategoryFood,
	CategoryOther,
}

// IsValidCategory reports whether c belongs to the category set
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ProductsCache is the time-boxed catalog snapshot
type ProductsCache struct {
	Records   []Product `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

// LineItem is an order line with name and price snapshotted at checkout
type LineItem struct {
	ProductID   string  `json:"product_id" dynamodbav:"product_id"`
	ProductName string  `json:"product_name" dynamodbav:"product_name"`
	Price       float64 `json:"price" dynamodbav:"price"`
	Quantity    int     `json:"quantity" dynamodbav:"quantity"`
	ImageURL    string  `json:"image_url,omitempty" dynamodbav:"image_url,omitempty"`
}

// Order represents a customer order
type Order struct {
	ID              string     `json:"id" dynamodbav:"id"`
	CustomerName    string     `json:"customer_name" dynamodbav:"customer_name"`
	CustomerEmail   string     `json:"customer_email" dynamodbav:"customer_email"`
	CustomerPhone   string     `json:"customer_phone" dynamodbav:"customer_phone"`
	ShippingAddress string     `json:"shipping_address" dynamodbav:"shipping_address"`
	Items           []LineItem `json:"items" dynamodbav:"items"`
	Subtotal        float64    `json:"subtotal" dynamodbav:"subtotal"`
	ShippingCost    float64    `json:"shipping_cost" dynamodbav:"shipping_cost"`
	Discount        float64    `json:"discount" dynamodbav:"discount"`
	Tax             float64    `json:"tax" dynamodbav:"tax"`
	TotalAmount     float64    `json:"total_amount" dynamodbav:"total_amount"`
	Status          string     `json:"status" dynamodbav:"status"`
	ShippingDate    *time.Time `json:"shipping_date,omitempty" dynamodbav:"shipping_date,omitempty"`
	Notes           string     `json:"notes,omitempty" dynamodbav:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCompleted = "completed"
)

// StockUpdate is one product line of an inventory transaction
type StockUpdate struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Category      string `json:"category"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	Quantity      int    `json:"quantity"`
}

// InventoryTransaction is one audit record of a stock change batch
type InventoryTransaction struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Timestamp   time.Time     `json:"timestamp"`
	PerformedBy string        `json:"performed_by"`
	ReferenceID string        `json:"reference_id,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Updates     []StockUpdate `json:"updates"`
}

// Inventory transaction types
const (
	TransactionOrderDeduction   = "order_deduction"
	TransactionManualAdjustment = "manual_adjustment"
	TransactionOrderReversal    = "order_reversal"
)

// CartItem is a cart line with name and price snapshotted when added
type CartItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url,omitempty"`
	Quantity    int     `json:"quantity"`
}

// Cart is a session-scoped shopping cart
type Cart struct {
	ID        string     `json:"id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AdminSession is the locally minted dashboard session
type AdminSession struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CategoryReport holds stock counts for one category
type CategoryReport struct {
	Products   int     `json:"products"`
	TotalStock int     `json:"total_stock"`
	TotalValue float64 `json:"total_value"`
	LowStock   int     `json:"low_stock"`
	OutOfStock int     `json:"out_of_stock"`
	Healthy    int     `json:"healthy"`
}

// InventoryReport aggregates stock over active products
type InventoryReport struct {
	CategoryReport
	ByCategory  map[string]CategoryReport `json:"by_category"`
	GeneratedAt time.Time                 `json:"generated_at"`
}
