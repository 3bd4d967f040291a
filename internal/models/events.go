package models

import "time"

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderConfirmed       = "ORDER_CONFIRMED"
	EventTypeFulfillmentSubmitted = "FULFILLMENT_SUBMITTED"
	EventTypeNotification         = "NOTIFICATION"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ItemID     int64 `json:"item_id"`
	VariantID  int64 `json:"variant_id"`
	Quantity   int   `json:"quantity"`
	FinalPrice int64 `json:"final_price"`
}

// OrderCreatedEvent is published after checkout persists an order.
// Consumed by the metrics worker to bump item popularity counters.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	Subtotal int64           `json:"subtotal"`
	Items    []OrderItemData `json:"items"`
}

// OrderConfirmedEvent is published once payment is confirmed
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

// FulfillmentSubmittedEvent is published after external submission completes
type FulfillmentSubmittedEvent struct {
	BaseEvent
	OrderID     int64    `json:"order_id"`
	UserID      int64    `json:"user_id"`
	ExternalIDs []string `json:"external_ids"`
	FailedItems int      `json:"failed_items"`
}

// NotificationEvent is a best-effort user notification
type NotificationEvent struct {
	BaseEvent
	UserID  int64  `json:"user_id"`
	Event   string `json:"event"`
	OrderID int64  `json:"order_id,omitempty"`
}
