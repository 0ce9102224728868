// Package cart holds the cart aggregate rules and the store-backed web cart
// operations. The functions in this file are pure: they take a collection of
// carts and return the next collection without mutating their input.
package cart

import (
	"github.com/shopspring/decimal"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/pkg/common"
)

// IndexByUser returns the index of the cart owned by userID, or -1.
func IndexByUser(carts []domain.Cart, userID string) int {
	for i := range carts {
		if carts[i].UserID == userID {
			return i
		}
	}
	return -1
}

// IndexByDevice returns the index of the cart bound to deviceID, or -1.
func IndexByDevice(carts []domain.Cart, deviceID string) int {
	if deviceID == "" {
		return -1
	}
	for i := range carts {
		if carts[i].DeviceID == deviceID {
			return i
		}
	}
	return -1
}

// Total sums price*quantity over items, rounded to two decimal places.
func Total(items []domain.CartItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	f, _ := sum.Round(2).Float64()
	return f
}

// ApplyAdd adds one scanned unit of p to the user's cart, creating the cart
// when missing. The unit counts as reserved: its stock was already taken.
func ApplyAdd(carts []domain.Cart, userID, deviceID string, p domain.Product) []domain.Cart {
	return AddUnits(carts, userID, deviceID, p, 1, true)
}

// AddUnits adds qty units of p to the user's cart. A non-empty deviceID is
// bound to the cart when it has no device yet.
func AddUnits(carts []domain.Cart, userID, deviceID string, p domain.Product, qty int, reserve bool) []domain.Cart {
	out := copyCarts(carts)
	idx := IndexByUser(out, userID)
	if idx == -1 {
		out = append(out, domain.Cart{UserID: userID, Items: []domain.CartItem{}})
		idx = len(out) - 1
	} else {
		out[idx] = out[idx].Clone()
	}
	c := &out[idx]
	if c.ID == "" {
		c.ID = common.PrefixedID("cart")
	}
	if c.DeviceID == "" && deviceID != "" {
		out = unbindDevice(out, deviceID, idx)
		c.DeviceID = deviceID
	}

	if i := c.ItemIndex(p.ID); i >= 0 {
		c.Items[i].Quantity += qty
		if reserve {
			c.Items[i].Reserved += qty
		}
	} else {
		item := domain.NewCartItem(p, qty)
		if reserve {
			item.Reserved = qty
		}
		c.Items = append(c.Items, item)
	}
	c.Total = Total(c.Items)
	return out
}

// ApplyRemove removes one scanned unit of p from the user's cart. Removing
// the last unit of the last item deletes the cart.
func ApplyRemove(carts []domain.Cart, userID string, p domain.Product) ([]domain.Cart, error) {
	out, _, err := RemoveUnits(carts, userID, p.ID, 1)
	return out, err
}

// RemoveUnits removes up to qty units of productID from the user's cart and
// reports how many of the removed units were reserved.
func RemoveUnits(carts []domain.Cart, userID, productID string, qty int) ([]domain.Cart, int, error) {
	idx := IndexByUser(carts, userID)
	if idx == -1 {
		return nil, 0, domain.ErrCartNotFound
	}
	i := carts[idx].ItemIndex(productID)
	if i == -1 {
		return nil, 0, domain.ErrItemNotFound
	}
	if qty < 1 {
		qty = 1
	}

	out := copyCarts(carts)
	out[idx] = out[idx].Clone()
	c := &out[idx]
	item := &c.Items[i]

	removed := qty
	if removed > item.Quantity {
		removed = item.Quantity
	}
	released := removed
	if released > item.Reserved {
		released = item.Reserved
	}

	if item.Quantity <= qty {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		item.Quantity -= removed
		item.Reserved -= released
		if item.Reserved > item.Quantity {
			item.Reserved = item.Quantity
		}
	}

	if len(c.Items) == 0 {
		return append(out[:idx], out[idx+1:]...), released, nil
	}
	c.Total = Total(c.Items)
	return out, released, nil
}

// Merge folds the items of src into dst and returns the combined cart. dst
// keeps its id, owner and device.
func Merge(dst, src domain.Cart) domain.Cart {
	out := dst.Clone()
	for _, it := range src.Items {
		if i := out.ItemIndex(it.ID); i >= 0 {
			out.Items[i].Quantity += it.Quantity
			out.Items[i].Reserved += it.Reserved
		} else {
			out.Items = append(out.Items, it)
		}
	}
	out.Total = Total(out.Items)
	return out
}

// Reconcile recomputes every cart total and reservation bound. It returns
// the next collection and the number of carts that changed.
func Reconcile(carts []domain.Cart) ([]domain.Cart, int) {
	out := copyCarts(carts)
	changed := 0
	for i := range out {
		dirty := false
		c := out[i].Clone()
		for j := range c.Items {
			if c.Items[j].Reserved > c.Items[j].Quantity {
				c.Items[j].Reserved = c.Items[j].Quantity
				dirty = true
			}
			if c.Items[j].Reserved < 0 {
				c.Items[j].Reserved = 0
				dirty = true
			}
		}
		if total := Total(c.Items); total != c.Total {
			c.Total = total
			dirty = true
		}
		if dirty {
			out[i] = c
			changed++
		}
	}
	return out, changed
}

// Reserved returns the number of reserved units per product id in c.
func Reserved(c domain.Cart) map[string]int {
	out := make(map[string]int, len(c.Items))
	for _, it := range c.Items {
		if it.Reserved > 0 {
			out[it.ID] += it.Reserved
		}
	}
	return out
}

func copyCarts(carts []domain.Cart) []domain.Cart {
	out := make([]domain.Cart, len(carts), len(carts)+1)
	copy(out, carts)
	return out
}

// unbindDevice clears deviceID from every cart except keep, so a device is
// bound to at most one cart.
func unbindDevice(carts []domain.Cart, deviceID string, keep int) []domain.Cart {
	for i := range carts {
		if i != keep && carts[i].DeviceID == deviceID {
			carts[i] = carts[i].Clone()
			carts[i].DeviceID = ""
		}
	}
	return carts
}
