package cart

import (
	"context"

	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
	"go.uber.org/zap"
)

// Service implements the web cart operations on top of the store.
type Service struct {
	store         *store.Store
	pub           events.Publisher
	defaultUserID string
}

func NewService(st *store.Store, pub events.Publisher, defaultUserID string) *Service {
	return &Service{store: st, pub: pub, defaultUserID: defaultUserID}
}

// Get returns the user's cart, or an empty view that is not persisted.
func (s *Service) Get(ctx context.Context, userID string) (domain.Cart, error) {
	out := domain.EmptyCart(userID)
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		if i := IndexByUser(snap.Carts, userID); i >= 0 {
			out = snap.Carts[i].Clone()
		}
		return nil
	})
	return out, err
}

// Add puts qty units of a product into the user's cart. Stock is checked
// but only deducted at checkout.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (domain.Cart, error) {
	if qty < 1 {
		return domain.Cart{}, domain.Validationf("quantity must be at least 1")
	}
	var out domain.Cart
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		pi := snap.ProductIndex(productID)
		if pi == -1 {
			return domain.ErrProductNotFound
		}
		p := snap.Products[pi]
		if p.Quantity < qty {
			return domain.ErrOutOfStock
		}
		snap.Carts = AddUnits(snap.Carts, userID, "", p, qty, false)
		out = snap.Carts[IndexByUser(snap.Carts, userID)].Clone()
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	s.publishCart(userID, &out)
	return out, nil
}

// Remove takes up to qty units of a product out of the user's cart. Units
// reserved by scans go back to stock.
func (s *Service) Remove(ctx context.Context, userID, productID string, qty int) (domain.Cart, error) {
	if qty < 1 {
		qty = 1
	}
	out := domain.EmptyCart(userID)
	var products []domain.Product
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		next, released, err := RemoveUnits(snap.Carts, userID, productID, qty)
		if err != nil {
			return err
		}
		snap.Carts = next
		if released > 0 {
			Restock(snap.Products, map[string]int{productID: released})
			products = append([]domain.Product(nil), snap.Products...)
		}
		if i := IndexByUser(next, userID); i >= 0 {
			out = next[i].Clone()
		}
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if len(out.Items) == 0 {
		s.publishCart(userID, nil)
	} else {
		s.publishCart(userID, &out)
	}
	s.publishInventory(products)
	return out, nil
}

// Clear deletes the user's cart. It is not an error when there is none.
func (s *Service) Clear(ctx context.Context, userID string) (domain.Cart, error) {
	cleared, err := s.clear(ctx, func(carts []domain.Cart) int { return IndexByUser(carts, userID) })
	if err != nil {
		return domain.Cart{}, err
	}
	if cleared != nil {
		s.publishCart(userID, nil)
	}
	return domain.EmptyCart(userID), nil
}

// ClearResult reports the outcome of a device clear.
type ClearResult struct {
	UserID  string `json:"userId"`
	Cleared bool   `json:"cleared"`
}

// ClearForDevice deletes the cart identified by cartID, or else the cart
// bound to deviceID. When nothing matches the default user is reported.
func (s *Service) ClearForDevice(ctx context.Context, cartID, deviceID string) (ClearResult, error) {
	if cartID == "" && deviceID == "" {
		return ClearResult{}, domain.Validationf("cartId or deviceId is required")
	}
	cleared, err := s.clear(ctx, func(carts []domain.Cart) int {
		if cartID != "" {
			for i := range carts {
				if carts[i].ID == cartID {
					return i
				}
			}
		}
		return IndexByDevice(carts, deviceID)
	})
	if err != nil {
		return ClearResult{}, err
	}
	if cleared == nil {
		return ClearResult{UserID: s.defaultUserID}, nil
	}
	zap.L().Info("device cart cleared",
		zap.String("namespace", "cart"),
		zap.String("cart", cleared.ID),
		zap.String("device", deviceID))
	s.publishCart(cleared.UserID, nil)
	return ClearResult{UserID: cleared.UserID, Cleared: true}, nil
}

func (s *Service) clear(ctx context.Context, find func([]domain.Cart) int) (*domain.Cart, error) {
	var cleared *domain.Cart
	var products []domain.Product
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		i := find(snap.Carts)
		if i == -1 {
			return nil
		}
		c := snap.Carts[i].Clone()
		cleared = &c
		if reserved := Reserved(c); len(reserved) > 0 {
			Restock(snap.Products, reserved)
			products = append([]domain.Product(nil), snap.Products...)
		}
		snap.Carts = append(snap.Carts[:i], snap.Carts[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishInventory(products)
	return cleared, nil
}

// Reconcile recomputes stored totals and returns how many carts changed.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	changed := 0
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		snap.Carts, changed = Reconcile(snap.Carts)
		return nil
	})
	return changed, err
}

// Restock puts units back on the shelf for every product id in units.
func Restock(products []domain.Product, units map[string]int) {
	for i := range products {
		if n, ok := units[products[i].ID]; ok {
			products[i].Quantity += n
		}
	}
}

func (s *Service) publishCart(userID string, c *domain.Cart) {
	s.pub.Publish(domain.Event{Kind: domain.EventCartUpdated, Data: domain.CartUpdatedData{UserID: userID, Cart: c}})
}

func (s *Service) publishInventory(products []domain.Product) {
	if products == nil {
		return
	}
	s.pub.Publish(domain.Event{Kind: domain.EventInventoryUpdated, Data: domain.InventoryUpdatedData{Products: products}})
}
