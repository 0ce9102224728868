// Package device binds physical carts to user carts and authenticates the
// devices.
package device

import (
	"context"

	"github.com/talkincode/smartcart/internal/cart"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
	"github.com/talkincode/smartcart/pkg/common"
	"go.uber.org/zap"
)

const connectedMessage = "Physical cart connected successfully"

type Service struct {
	store *store.Store
	pub   events.Publisher
}

func NewService(st *store.Store, pub events.Publisher) *Service {
	return &Service{store: st, pub: pub}
}

// Connect binds deviceID to the user's cart. A device bound to another user
// is taken over together with its cart; when the user already had a cart
// the two are merged. Without any cart an empty holder cart is created.
func (s *Service) Connect(ctx context.Context, userID, deviceID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.Validationf("user ID is required")
	}
	if deviceID == "" {
		return domain.Cart{}, domain.Validationf("device ID is required")
	}
	var out domain.Cart
	var previous string
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		carts := snap.Carts
		di := cart.IndexByDevice(carts, deviceID)
		ui := cart.IndexByUser(carts, userID)

		switch {
		case di >= 0 && carts[di].UserID != userID:
			previous = carts[di].UserID
			taken := carts[di].Clone()
			taken.UserID = userID
			if ui >= 0 {
				taken = cart.Merge(taken, carts[ui])
			}
			carts[di] = taken
			if ui >= 0 {
				carts = append(carts[:ui], carts[ui+1:]...)
			}
			out = taken
		case ui >= 0:
			for i := range carts {
				if i != ui && carts[i].DeviceID == deviceID {
					carts[i].DeviceID = ""
				}
			}
			carts[ui].DeviceID = deviceID
			if carts[ui].ID == "" {
				carts[ui].ID = common.PrefixedID("cart")
			}
			out = carts[ui].Clone()
		default:
			out = domain.Cart{
				ID:       common.PrefixedID("cart"),
				UserID:   userID,
				DeviceID: deviceID,
				Items:    []domain.CartItem{},
			}
			carts = append(carts, out.Clone())
		}
		snap.Carts = carts
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	log := zap.L().With(zap.String("namespace", "device"), zap.String("device", deviceID), zap.String("user", userID))
	if previous != "" {
		log.Info("device transferred", zap.String("previous_user", previous))
	} else {
		log.Info("device connected")
	}
	s.pub.Publish(domain.Event{
		Kind: domain.EventCartConnected,
		Data: domain.CartConnectedData{Success: true, UserID: userID, DeviceID: deviceID, Message: connectedMessage},
	})
	return out, nil
}

// Disconnect clears the device binding of the user's cart. A holder cart
// without items is dropped.
func (s *Service) Disconnect(ctx context.Context, userID string) (domain.Cart, error) {
	var out domain.Cart
	var deviceID string
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		i := cart.IndexByUser(snap.Carts, userID)
		if i == -1 {
			return domain.ErrCartNotFound
		}
		deviceID = snap.Carts[i].DeviceID
		snap.Carts[i].DeviceID = ""
		out = snap.Carts[i].Clone()
		if len(out.Items) == 0 {
			snap.Carts = append(snap.Carts[:i], snap.Carts[i+1:]...)
		}
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	zap.L().Info("device disconnected",
		zap.String("namespace", "device"),
		zap.String("device", deviceID),
		zap.String("user", userID))
	s.pub.Publish(domain.Event{Kind: domain.EventCartUpdated, Data: domain.CartUpdatedData{UserID: userID, Cart: &out}})
	return out, nil
}

// Status describes what a device is bound to.
type Status struct {
	Connected bool               `json:"connected"`
	Cart      *domain.Cart       `json:"cart"`
	User      *domain.PublicUser `json:"user,omitempty"`
}

func (s *Service) Status(ctx context.Context, deviceID string) (Status, error) {
	if deviceID == "" {
		return Status{}, domain.Validationf("device ID is required")
	}
	var out Status
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		i := cart.IndexByDevice(snap.Carts, deviceID)
		if i == -1 {
			return nil
		}
		c := snap.Carts[i].Clone()
		out.Connected = true
		out.Cart = &c
		if ui := snap.UserIndex(c.UserID); ui >= 0 {
			u := snap.Users[ui].Public()
			u.Role = ""
			out.User = &u
		}
		return nil
	})
	return out, err
}

// ConnectedDevices lists every current binding.
func (s *Service) ConnectedDevices(ctx context.Context) ([]domain.DeviceBinding, error) {
	out := []domain.DeviceBinding{}
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		for _, c := range snap.Carts {
			if c.DeviceID != "" {
				out = append(out, domain.DeviceBinding{DeviceID: c.DeviceID, UserID: c.UserID, CartID: c.ID})
			}
		}
		return nil
	})
	return out, err
}

// BoundUser returns the owner of the cart bound to deviceID.
func (s *Service) BoundUser(ctx context.Context, deviceID string) (string, bool, error) {
	var userID string
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		if i := cart.IndexByDevice(snap.Carts, deviceID); i >= 0 {
			userID = snap.Carts[i].UserID
		}
		return nil
	})
	return userID, userID != "", err
}

// Announce publishes cart_connected for a device that identified itself on
// the real-time channel.
func (s *Service) Announce(ctx context.Context, deviceID string) {
	userID, _, err := s.BoundUser(ctx, deviceID)
	if err != nil {
		zap.L().Warn("lookup device binding failed", zap.String("namespace", "device"), zap.Error(err))
	}
	s.pub.Publish(domain.Event{
		Kind: domain.EventCartConnected,
		Data: domain.CartConnectedData{Success: true, UserID: userID, DeviceID: deviceID, Message: connectedMessage},
	})
}

// Gone publishes cart_disconnected. The binding itself is kept.
func (s *Service) Gone(deviceID string) {
	s.pub.Publish(domain.Event{
		Kind: domain.EventCartDisconnected,
		Data: domain.CartDisconnectedData{DeviceID: deviceID, Message: "Physical cart disconnected"},
	})
}
