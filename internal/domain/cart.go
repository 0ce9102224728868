package domain

// CartItem is a product snapshot taken when the item was first added, plus
// a quantity counter. Later catalog price changes do not affect it.
type CartItem struct {
	ID       string   `json:"id"` // product id
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	RFIDTag  string   `json:"rfidTag"`
	Weight   *float64 `json:"weight,omitempty"`
	Image    string   `json:"image,omitempty"`
	Quantity int      `json:"quantity"`
	// Reserved counts units whose stock was already deducted by a scan.
	// Always 0 <= Reserved <= Quantity.
	Reserved int `json:"reserved,omitempty"`
}

// NewCartItem copies the product fields into a line item.
func NewCartItem(p Product, quantity int) CartItem {
	return CartItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		RFIDTag:  p.RFIDTag,
		Weight:   p.Weight,
		Image:    p.Image,
		Quantity: quantity,
	}
}

// Cart is the aggregate owned by one user, optionally bound to a device.
type Cart struct {
	ID       string     `json:"id,omitempty"`
	UserID   string     `json:"userId"`
	DeviceID string     `json:"deviceId,omitempty"`
	Items    []CartItem `json:"items"`
	Total    float64    `json:"total"`
}

// EmptyCart is the view returned when a user has no cart.
func EmptyCart(userID string) Cart {
	return Cart{UserID: userID, Items: []CartItem{}}
}

// ItemIndex returns the index of the line item for productID, or -1.
func (c Cart) ItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ID == productID {
			return i
		}
	}
	return -1
}

// Units returns the number of units across all line items.
func (c Cart) Units() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

// DeviceBinding describes a device currently bound to a cart.
type DeviceBinding struct {
	DeviceID string `json:"deviceId"`
	UserID   string `json:"userId"`
	CartID   string `json:"cartId"`
}
