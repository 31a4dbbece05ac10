package models

import "time"

// Event types
const (
	EventTypeUserRegistered     = "USER_REGISTERED"
	EventTypeCheckoutCreated    = "CHECKOUT_CREATED"
	EventTypeCheckoutPaid       = "CHECKOUT_PAID"
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderFinalized     = "ORDER_FINALIZED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// UserRegisteredEvent published when an account is created
type UserRegisteredEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// CheckoutCreatedEvent published when a checkout is opened
type CheckoutCreatedEvent struct {
	BaseEvent
	CheckoutID string  `json:"checkout_id"`
	UserID     string  `json:"user_id"`
	TotalPrice float64 `json:"total_price"`
	ItemCount  int     `json:"item_count"`
}

// CheckoutPaidEvent published when payment is confirmed on a checkout
type CheckoutPaidEvent struct {
	BaseEvent
	CheckoutID string    `json:"checkout_id"`
	UserID     string    `json:"user_id"`
	TotalPrice float64   `json:"total_price"`
	PaidAt     time.Time `json:"paid_at"`
}

// OrderPlacedEvent is published for ORDER_CREATED and ORDER_FINALIZED
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    string          `json:"order_id"`
	CheckoutID string          `json:"checkout_id,omitempty"`
	UserID     string          `json:"user_id"`
	TotalPrice float64         `json:"total_price"`
	Items      []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published when an admin moves an order along
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}
