package realtime

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/scan"
	"go.uber.org/zap"
)

// Inbound events.
const (
	EventNodeMCUConnect   = "nodemcu_connect"
	EventNodeMCUScan      = "nodemcu_rfid_scan"
	EventRFIDScan         = "rfid_scan"
	EventInventoryUpdate  = "inventory_update"
	EventPaymentCompleted = "payment_completed"
)

// Replies sent to a single client.
const (
	ReplyConnectionSuccess = "nodemcu_connection_success"
	ReplyError             = "error"
)

type Scanner interface {
	Process(ctx context.Context, req scan.Request) (*scan.Result, error)
}

type Devices interface {
	Announce(ctx context.Context, deviceID string)
	Gone(deviceID string)
}

type DeviceVerifier interface {
	Verify(deviceID, token string) error
	Required() bool
}

type TokenParser interface {
	Parse(token string) (domain.Identity, error)
}

type Inventory interface {
	SetQuantity(ctx context.Context, id string, qty int) (domain.Product, error)
}

type Payments interface {
	CompleteFromSocket(ctx context.Context, userID string) (domain.Order, error)
}

// Deps are the services reachable from the socket. Timeout bounds each
// inbound message.
type Deps struct {
	Scanner   Scanner
	Devices   Devices
	Verifier  DeviceVerifier
	Tokens    TokenParser
	Inventory Inventory
	Payments  Payments
	Timeout   time.Duration
}

type connectData struct {
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
}

type scanData struct {
	RFIDTag  string `json:"rfidTag"`
	Action   string `json:"action"`
	DeviceID string `json:"deviceId"`
	UserID   string `json:"userId"`
	Token    string `json:"token"`
}

type inventoryData struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type paymentData struct {
	UserID string `json:"userId"`
}

func (h *Hub) dispatch(c *Client, f Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), h.deps.Timeout)
	defer cancel()

	var err error
	switch f.Event {
	case EventNodeMCUConnect:
		err = h.onConnect(ctx, c, f)
	case EventNodeMCUScan:
		err = h.onDeviceScan(ctx, c, f)
	case EventRFIDScan:
		err = h.onScan(ctx, c, f)
	case EventInventoryUpdate:
		err = h.onInventory(ctx, c, f)
	case EventPaymentCompleted:
		err = h.onPayment(ctx, c, f)
	default:
		zap.L().Debug("ignoring unknown event", zap.String("namespace", "realtime"), zap.String("event", f.Event))
		return
	}
	if err != nil {
		zap.L().Warn("socket event failed",
			zap.String("namespace", "realtime"),
			zap.String("client", c.id),
			zap.String("event", f.Event),
			zap.Error(err))
		c.reply(ReplyError, domain.ErrorData{Message: message(err)})
	}
}

func (h *Hub) decode(f Frame, v interface{}) error {
	if len(f.Data) == 0 {
		return domain.Validationf("missing data")
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return domain.Validationf("malformed data")
	}
	return nil
}

func (h *Hub) onConnect(ctx context.Context, c *Client, f Frame) error {
	var d connectData
	if err := h.decode(f, &d); err != nil {
		return err
	}
	if d.DeviceID == "" {
		return domain.Validationf("Device ID is required")
	}
	if h.deps.Verifier != nil {
		if err := h.deps.Verifier.Verify(d.DeviceID, d.Token); err != nil {
			return err
		}
	}
	c.setDevice(d.DeviceID)
	if h.deps.Devices != nil {
		h.deps.Devices.Announce(ctx, d.DeviceID)
	}
	c.reply(ReplyConnectionSuccess, map[string]string{
		"deviceId": d.DeviceID,
		"message":  "Successfully connected to server",
	})
	return nil
}

func (h *Hub) onDeviceScan(ctx context.Context, c *Client, f Frame) error {
	var d scanData
	if err := h.decode(f, &d); err != nil {
		return err
	}
	if d.RFIDTag == "" || d.DeviceID == "" {
		return domain.Validationf("RFID tag and device ID are required")
	}
	// a device that authenticated on connect need not repeat its token
	if c.DeviceID() != d.DeviceID && h.deps.Verifier != nil {
		if err := h.deps.Verifier.Verify(d.DeviceID, d.Token); err != nil {
			return err
		}
	}
	_, err := h.deps.Scanner.Process(ctx, scan.Request{
		RFIDTag:   d.RFIDTag,
		Action:    d.Action,
		DeviceID:  d.DeviceID,
		BoundOnly: true,
	})
	return err
}

func (h *Hub) onScan(ctx context.Context, c *Client, f Frame) error {
	var d scanData
	if err := h.decode(f, &d); err != nil {
		return err
	}
	if err := h.verifyScanDevice(c, d); err != nil {
		return err
	}
	userID := d.UserID
	if c.identity != nil {
		userID = c.identity.ID
	}
	_, err := h.deps.Scanner.Process(ctx, scan.Request{
		RFIDTag:  d.RFIDTag,
		Action:   d.Action,
		DeviceID: d.DeviceID,
		UserID:   userID,
	})
	return err
}

// verifyScanDevice applies the HTTP scan rules: a named device must match
// its token unless this connection already authenticated as it, and an
// anonymous scan without a device is refused when tokens are required.
func (h *Hub) verifyScanDevice(c *Client, d scanData) error {
	if h.deps.Verifier == nil {
		return nil
	}
	if d.DeviceID == "" {
		if c.identity == nil && h.deps.Verifier.Required() {
			return domain.Validationf("Device ID is required")
		}
		return nil
	}
	if c.DeviceID() == d.DeviceID {
		return nil
	}
	return h.deps.Verifier.Verify(d.DeviceID, d.Token)
}

func (h *Hub) onInventory(ctx context.Context, c *Client, f Frame) error {
	if c.identity == nil {
		return domain.ErrUnauthorized
	}
	if !c.identity.IsAdmin() {
		return domain.ErrForbidden
	}
	var d inventoryData
	if err := h.decode(f, &d); err != nil {
		return err
	}
	if d.ProductID == "" || d.Quantity == nil {
		return domain.Validationf("productId and quantity are required")
	}
	_, err := h.deps.Inventory.SetQuantity(ctx, d.ProductID, *d.Quantity)
	return err
}

func (h *Hub) onPayment(ctx context.Context, c *Client, f Frame) error {
	if c.identity == nil {
		return domain.ErrUnauthorized
	}
	var d paymentData
	if len(f.Data) > 0 {
		if err := h.decode(f, &d); err != nil {
			return err
		}
	}
	userID := c.identity.ID
	if d.UserID != "" && d.UserID != userID && !c.identity.IsAdmin() {
		return domain.ErrForbidden
	}
	if d.UserID != "" {
		userID = d.UserID
	}
	_, err := h.deps.Payments.CompleteFromSocket(ctx, userID)
	return err
}

// message is the text shown to socket clients for err.
func message(err error) string {
	switch {
	case errors.Is(err, scan.ErrNoDeviceCart):
		return "No cart found for this device"
	case errors.Is(err, domain.ErrProductNotFound):
		return "Product not found"
	case errors.Is(err, domain.ErrCartNotFound):
		return "Cart not found"
	case errors.Is(err, domain.ErrItemNotFound):
		return "Item not found in cart"
	case errors.Is(err, domain.ErrOutOfStock):
		return "Product out of stock"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return "Access denied"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	case errors.Is(err, domain.ErrValidation):
		return strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
	}
	return "Internal error"
}
