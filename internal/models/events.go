package models

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeCatalogReady       = "catalog_ready"
	EventTypeProductsUpdated    = "products_updated"
	EventTypeOrderCreated       = "order_created"
	EventTypeOrderStatusChanged = "order_status_changed"
	EventTypeOrderDeleted       = "order_deleted"
	EventTypeInventoryRecorded  = "inventory_recorded"
)

// BaseEvent contains common fields for all broker messages
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin"`
}

// Envelope is the broker message carrying one bus event
type Envelope struct {
	BaseEvent
	Payload json.RawMessage `json:"payload"`
}
