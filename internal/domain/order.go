package domain

import "time"

const (
	OrderSourceCheckout = "checkout"
	OrderSourcePayment  = "payment"
	OrderSourceSocket   = "socket"
)

// Order is written once when a cart is checked out or paid for.
type Order struct {
	ID             string     `json:"orderId"`
	UserID         string     `json:"userId"`
	Items          []CartItem `json:"items"`
	Total          float64    `json:"total"`
	Date           time.Time  `json:"date"`
	DeviceID       string     `json:"deviceId,omitempty"`
	PaymentID      string     `json:"paymentId,omitempty"`
	GatewayOrderID string     `json:"gatewayOrderId,omitempty"`
	Source         string     `json:"source,omitempty"`
}
