// Package checkout turns a cart into an order.
package checkout

import (
	"context"
	"sort"
	"time"

	"github.com/talkincode/smartcart/internal/cart"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
	"github.com/talkincode/smartcart/pkg/common"
	"go.uber.org/zap"
)

// Payment identifies a completed gateway payment.
type Payment struct {
	PaymentID      string
	GatewayOrderID string
}

type Service struct {
	store *store.Store
	pub   events.Publisher
	now   func() time.Time
}

func NewService(st *store.Store, pub events.Publisher) *Service {
	return &Service{store: st, pub: pub, now: time.Now}
}

// Checkout closes the user's cart without a gateway payment.
func (s *Service) Checkout(ctx context.Context, userID string) (domain.Order, error) {
	return s.complete(ctx, userID, domain.OrderSourceCheckout, Payment{})
}

// CompletePayment closes the user's cart after the gateway confirmed payment.
func (s *Service) CompletePayment(ctx context.Context, userID string, p Payment) (domain.Order, error) {
	return s.complete(ctx, userID, domain.OrderSourcePayment, p)
}

// CompleteFromSocket closes the cart of a client reporting payment on the
// real-time channel.
func (s *Service) CompleteFromSocket(ctx context.Context, userID string) (domain.Order, error) {
	return s.complete(ctx, userID, domain.OrderSourceSocket, Payment{})
}

// complete writes the order, deducts the units whose stock was not already
// taken by scans and deletes the cart, all in one transaction.
func (s *Service) complete(ctx context.Context, userID, source string, p Payment) (domain.Order, error) {
	var order domain.Order
	var products []domain.Product
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		i := cart.IndexByUser(snap.Carts, userID)
		if i == -1 {
			return domain.ErrCartNotFound
		}
		c := snap.Carts[i]
		if len(c.Items) == 0 {
			return domain.ErrCartEmpty
		}

		items := make([]domain.CartItem, len(c.Items))
		for j, it := range c.Items {
			if pi := snap.ProductIndex(it.ID); pi >= 0 {
				snap.Products[pi].Quantity -= it.Quantity - it.Reserved
				if snap.Products[pi].Quantity < 0 {
					snap.Products[pi].Quantity = 0
				}
			}
			it.Reserved = 0
			items[j] = it
		}

		order = domain.Order{
			ID:             common.PrefixedID("order"),
			UserID:         userID,
			Items:          items,
			Total:          cart.Total(items),
			Date:           s.now().UTC(),
			DeviceID:       c.DeviceID,
			PaymentID:      p.PaymentID,
			GatewayOrderID: p.GatewayOrderID,
			Source:         source,
		}
		snap.Orders = append(snap.Orders, order)
		snap.Carts = append(snap.Carts[:i], snap.Carts[i+1:]...)
		products = append([]domain.Product(nil), snap.Products...)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	zap.L().Info("order created",
		zap.String("namespace", "checkout"),
		zap.String("order", order.ID),
		zap.String("user", userID),
		zap.String("source", source),
		zap.Float64("total", order.Total))

	s.pub.Publish(domain.Event{
		Kind: domain.EventCheckoutComplete,
		Data: domain.CheckoutCompleteData{
			UserID:   userID,
			DeviceID: order.DeviceID,
			OrderID:  order.ID,
			Message:  "Checkout completed successfully",
		},
	})
	s.pub.Publish(domain.Event{Kind: domain.EventCartUpdated, Data: domain.CartUpdatedData{UserID: userID}})
	s.pub.Publish(domain.Event{Kind: domain.EventInventoryUpdated, Data: domain.InventoryUpdatedData{Products: products}})
	return order, nil
}

// Orders returns the orders of userID, newest first. An empty userID
// returns every order.
func (s *Service) Orders(ctx context.Context, userID string) ([]domain.Order, error) {
	out := []domain.Order{}
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		for _, o := range snap.Orders {
			if userID == "" || o.UserID == userID {
				out = append(out, o)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, err
}
