// Package catalog manages the product list and its RFID tags.
package catalog

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/events"
	"github.com/talkincode/smartcart/internal/store"
	"go.uber.org/zap"
)

// ProductInput is a complete product definition.
type ProductInput struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Price    float64  `json:"price" validate:"gt=0"`
	RFIDTag  string   `json:"rfidTag" validate:"required,max=64"`
	Quantity *int     `json:"quantity" validate:"required,gte=0"`
	Weight   *float64 `json:"weight" validate:"omitempty,gte=0"`
	Image    string   `json:"image" validate:"omitempty,max=500"`
}

// ProductPatch changes only the fields that are set.
type ProductPatch struct {
	Name     *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Price    *float64 `json:"price" validate:"omitempty,gt=0"`
	RFIDTag  *string  `json:"rfidTag" validate:"omitempty,min=1,max=64"`
	Quantity *int     `json:"quantity"`
	Weight   *float64 `json:"weight" validate:"omitempty,gte=0"`
	Image    *string  `json:"image" validate:"omitempty,max=500"`
}

type Service struct {
	store *store.Store
	pub   events.Publisher
}

func NewService(st *store.Store, pub events.Publisher) *Service {
	return &Service{store: st, pub: pub}
}

// List returns every product whose name contains q or whose tag equals q,
// ignoring case. An empty q returns the whole catalog.
func (s *Service) List(ctx context.Context, q string) ([]domain.Product, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	out := []domain.Product{}
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		for _, p := range snap.Products {
			if q == "" || strings.Contains(strings.ToLower(p.Name), q) || strings.EqualFold(p.RFIDTag, q) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	var out domain.Product
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		i := snap.ProductIndex(id)
		if i == -1 {
			return domain.ErrProductNotFound
		}
		out = snap.Products[i]
		return nil
	})
	return out, err
}

func (s *Service) GetByTag(ctx context.Context, tag string) (domain.Product, error) {
	var out domain.Product
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		i := snap.ProductIndexByTag(strings.TrimSpace(tag))
		if i == -1 {
			return domain.ErrProductNotFound
		}
		out = snap.Products[i]
		return nil
	})
	return out, err
}

// Create adds a product with the next numeric id.
func (s *Service) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	tag := strings.TrimSpace(in.RFIDTag)
	if name == "" || tag == "" || in.Quantity == nil || in.Price <= 0 {
		return domain.Product{}, domain.Validationf("name, price, RFID tag, and quantity are required")
	}
	if *in.Quantity < 0 {
		return domain.Product{}, domain.Validationf("quantity must not be negative")
	}
	var out domain.Product
	var products []domain.Product
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		if snap.ProductIndexByTag(tag) >= 0 {
			return domain.ErrDuplicateTag
		}
		out = domain.Product{
			ID:       NextID(snap.Products),
			Name:     name,
			Price:    in.Price,
			RFIDTag:  tag,
			Quantity: *in.Quantity,
			Weight:   in.Weight,
			Image:    strings.TrimSpace(in.Image),
		}
		snap.Products = append(snap.Products, out)
		products = append([]domain.Product(nil), snap.Products...)
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	zap.L().Info("product created", zap.String("namespace", "catalog"), zap.String("id", out.ID), zap.String("tag", out.RFIDTag))
	s.publish(products)
	return out, nil
}

// Update applies patch to product id. Quantity is clamped at zero.
func (s *Service) Update(ctx context.Context, id string, patch ProductPatch) (domain.Product, error) {
	var out domain.Product
	var products []domain.Product
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		i := snap.ProductIndex(id)
		if i == -1 {
			return domain.ErrProductNotFound
		}
		p := &snap.Products[i]
		if patch.RFIDTag != nil {
			tag := strings.TrimSpace(*patch.RFIDTag)
			if tag == "" {
				return domain.Validationf("rfidTag must not be empty")
			}
			if j := snap.ProductIndexByTag(tag); j >= 0 && j != i {
				return domain.ErrDuplicateTag
			}
			p.RFIDTag = tag
		}
		if patch.Name != nil {
			if name := strings.TrimSpace(*patch.Name); name != "" {
				p.Name = name
			}
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Quantity != nil {
			p.Quantity = clampQuantity(*patch.Quantity)
		}
		if patch.Weight != nil {
			p.Weight = patch.Weight
		}
		if patch.Image != nil {
			p.Image = strings.TrimSpace(*patch.Image)
		}
		out = *p
		products = append([]domain.Product(nil), snap.Products...)
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.publish(products)
	return out, nil
}

// Delete removes product id. Carts keep their line item snapshots.
func (s *Service) Delete(ctx context.Context, id string) (domain.Product, error) {
	var out domain.Product
	var products []domain.Product
	err := s.store.Update(ctx, func(snap *store.Snapshot) error {
		i := snap.ProductIndex(id)
		if i == -1 {
			return domain.ErrProductNotFound
		}
		out = snap.Products[i]
		snap.Products = append(snap.Products[:i], snap.Products[i+1:]...)
		products = append([]domain.Product(nil), snap.Products...)
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	zap.L().Info("product deleted", zap.String("namespace", "catalog"), zap.String("id", id))
	s.publish(products)
	return out, nil
}

// SetQuantity overwrites the stock of product id, clamped at zero.
func (s *Service) SetQuantity(ctx context.Context, id string, qty int) (domain.Product, error) {
	return s.Update(ctx, id, ProductPatch{Quantity: &qty})
}

// NextID returns max(numeric ids)+1 as a decimal string.
func NextID(products []domain.Product) string {
	var max int64
	for _, p := range products {
		if n, err := cast.ToInt64E(p.ID); err == nil && n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10)
}

func clampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}

func sortByID(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		a, errA := strconv.ParseInt(products[i].ID, 10, 64)
		b, errB := strconv.ParseInt(products[j].ID, 10, 64)
		if errA != nil || errB != nil {
			return products[i].ID < products[j].ID
		}
		return a < b
	})
}

func (s *Service) publish(products []domain.Product) {
	s.pub.Publish(domain.Event{Kind: domain.EventInventoryUpdated, Data: domain.InventoryUpdatedData{Products: products}})
}
