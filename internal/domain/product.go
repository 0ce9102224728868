package domain

import "strings"

// Product is a catalog entry carrying the RFID tag read by the cart device.
type Product struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"` // price in main currency units
	RFIDTag  string   `json:"rfidTag"`
	Quantity int      `json:"quantity"` // units on hand
	Weight   *float64 `json:"weight,omitempty"`
	Image    string   `json:"image,omitempty"` // image reference (optional)
}

// MatchesTag compares RFID tags case-insensitively.
func (p Product) MatchesTag(tag string) bool {
	return strings.EqualFold(p.RFIDTag, tag)
}

// InStock reports whether at least one unit is on hand.
func (p Product) InStock() bool {
	return p.Quantity > 0
}
