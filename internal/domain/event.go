package domain

// EventKind names a message published on the real-time channel.
type EventKind string

const (
	EventCartConnected    EventKind = "cart_connected"
	EventCartDisconnected EventKind = "cart_disconnected"
	EventProductScanned   EventKind = "product_scanned"
	EventProductNotFound  EventKind = "product_not_found"
	EventCartUpdated      EventKind = "cart_updated"
	EventInventoryUpdated EventKind = "inventory_updated"
	EventCheckoutComplete EventKind = "checkout_complete"
	EventError            EventKind = "error"
)

// Event is a typed notification delivered to every subscriber.
type Event struct {
	Kind EventKind   `json:"event"`
	Data interface{} `json:"data"`
}

type CartConnectedData struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId,omitempty"`
	DeviceID string `json:"deviceId"`
	Message  string `json:"message"`
}

type CartDisconnectedData struct {
	DeviceID string `json:"deviceId"`
	Message  string `json:"message"`
}

type ProductScannedData struct {
	Product  Product `json:"product"`
	Action   string  `json:"action"`
	UserID   string  `json:"userId"`
	DeviceID string  `json:"deviceId,omitempty"`
}

type ProductNotFoundData struct {
	DeviceID string `json:"deviceId"`
	RFIDTag  string `json:"rfidTag"`
}

// CartUpdatedData carries the user's cart; Cart is nil when it was deleted.
type CartUpdatedData struct {
	UserID string `json:"userId"`
	Cart   *Cart  `json:"cart"`
}

type InventoryUpdatedData struct {
	Products []Product `json:"products"`
}

type CheckoutCompleteData struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId,omitempty"`
	OrderID  string `json:"orderId"`
	Message  string `json:"message"`
}

type ErrorData struct {
	Message string `json:"message"`
}
