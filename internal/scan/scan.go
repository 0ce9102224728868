// Package scan turns an RFID read into a stock change and a cart change,
// committed together, followed by notifications.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/talkincode/smartcart/internal/cart"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
	"github.com/talkincode/smartcart/pkg/common"
	"go.uber.org/zap"
)

// Action is what a scan does to the cart.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// ErrNoDeviceCart is returned for bound-only scans from an unbound device.
var ErrNoDeviceCart = fmt.Errorf("%w: no cart found for this device", domain.ErrNotFound)

// ParseAction accepts "add", "remove" or empty, which means add.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case "", ActionAdd:
		return ActionAdd, nil
	case ActionRemove:
		return ActionRemove, nil
	}
	return "", domain.Validationf("unknown scan action %q", s)
}

// Request is one RFID read.
type Request struct {
	RFIDTag  string `json:"rfidTag" validate:"required"`
	Action   string `json:"action" validate:"omitempty,oneof=add remove"`
	DeviceID string `json:"deviceId"`
	UserID   string `json:"userId"`
	// BoundOnly rejects the scan unless DeviceID is bound to a cart.
	BoundOnly bool `json:"-"`
}

// Result describes the committed scan.
type Result struct {
	DryRun   bool           `json:"dryRun,omitempty"`
	Action   Action         `json:"action"`
	UserID   string         `json:"userId,omitempty"`
	DeviceID string         `json:"deviceId,omitempty"`
	Product  domain.Product `json:"product"`
	// Cart is nil when the scan removed the last item.
	Cart *domain.Cart `json:"cart"`
}

// Message is the human readable outcome returned to devices.
func (r *Result) Message() string {
	switch {
	case r.DryRun:
		return "Test tag received, no changes made"
	case r.Action == ActionRemove:
		return "Product removed from cart"
	}
	return "Product added to cart"
}

type Config struct {
	TestTag       string
	DefaultUserID string
}

type Service struct {
	store *store.Store
	pub   events.Publisher
	cfg   Config
}

func NewService(st *store.Store, pub events.Publisher, cfg Config) *Service {
	return &Service{store: st, pub: pub, cfg: cfg}
}

// Process applies one scan. The device binding, when present, decides whose
// cart is used. Stock and cart are saved in a single store transaction;
// product_scanned and cart_updated are published only after it commits.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	tag := strings.TrimSpace(req.RFIDTag)
	if tag == "" {
		return nil, domain.Validationf("rfidTag is required")
	}
	if s.cfg.TestTag != "" && strings.EqualFold(tag, s.cfg.TestTag) {
		zap.L().Info("test tag received",
			zap.String("namespace", "scan"),
			zap.String("device", req.DeviceID))
		return &Result{DryRun: true, Action: action, UserID: req.UserID, DeviceID: req.DeviceID}, nil
	}

	res := &Result{Action: action, DeviceID: req.DeviceID}
	err = s.store.Update(ctx, func(snap *store.Snapshot) error {
		userID := req.UserID
		if i := cart.IndexByDevice(snap.Carts, req.DeviceID); i >= 0 {
			userID = snap.Carts[i].UserID
		} else if req.BoundOnly {
			return ErrNoDeviceCart
		}
		userID = common.IfEmptyStr(userID, s.cfg.DefaultUserID)
		if userID == "" {
			return domain.Validationf("userId is required")
		}
		res.UserID = userID

		pi := snap.ProductIndexByTag(tag)
		if pi == -1 {
			return domain.ErrProductNotFound
		}
		p := &snap.Products[pi]

		switch action {
		case ActionAdd:
			if p.Quantity <= 0 {
				return domain.ErrOutOfStock
			}
			p.Quantity--
			snap.Carts = cart.ApplyAdd(snap.Carts, userID, req.DeviceID, *p)
		case ActionRemove:
			next, err := cart.ApplyRemove(snap.Carts, userID, *p)
			if err != nil {
				return err
			}
			// no upper bound on the restored stock
			p.Quantity++
			snap.Carts = next
		}
		res.Product = *p
		if i := cart.IndexByUser(snap.Carts, userID); i >= 0 {
			c := snap.Carts[i].Clone()
			res.Cart = &c
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) && req.DeviceID != "" {
			s.pub.Publish(domain.Event{
				Kind: domain.EventProductNotFound,
				Data: domain.ProductNotFoundData{DeviceID: req.DeviceID, RFIDTag: tag},
			})
		}
		zap.L().Warn("scan rejected",
			zap.String("namespace", "scan"),
			zap.String("tag", tag),
			zap.String("device", req.DeviceID),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("scan processed",
		zap.String("namespace", "scan"),
		zap.String("action", string(action)),
		zap.String("product", res.Product.Name),
		zap.String("user", res.UserID),
		zap.String("device", req.DeviceID))

	s.pub.Publish(domain.Event{
		Kind: domain.EventProductScanned,
		Data: domain.ProductScannedData{Product: res.Product, Action: string(action), UserID: res.UserID, DeviceID: req.DeviceID},
	})
	s.pub.Publish(domain.Event{
		Kind: domain.EventCartUpdated,
		Data: domain.CartUpdatedData{UserID: res.UserID, Cart: res.Cart},
	})
	return res, nil
}
