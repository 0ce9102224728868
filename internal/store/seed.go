package store

import "github.com/talkincode/smartcart/internal/domain"

// DemoProducts is the catalog written on first start.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: "1", Name: "Milk", Price: 2.99, RFIDTag: "A1B2C3D4", Quantity: 20},
		{ID: "2", Name: "Bread", Price: 1.99, RFIDTag: "E5F6G7H8", Quantity: 15},
		{ID: "3", Name: "Eggs", Price: 3.49, RFIDTag: "I9J0K1L2", Quantity: 30},
		{ID: "4", Name: "Cheese", Price: 4.99, RFIDTag: "M3N4O5P6", Quantity: 10},
		{ID: "5", Name: "Apples", Price: 0.99, RFIDTag: "Q7R8S9T0", Quantity: 50},
	}
}

// DemoUsers is the account list written on first start. Passwords are
// plaintext here and hashed by the caller before saving.
func DemoUsers() []domain.User {
	return []domain.User{
		{ID: "1", Username: "admin", Password: "admin123", Role: domain.RoleAdmin},
		{ID: "2", Username: "customer", Password: "customer123", Role: domain.RoleCustomer},
	}
}

// SeedDemo fills an empty snapshot with the demo catalog and users as-is.
func SeedDemo(snap *Snapshot) {
	snap.Products = DemoProducts()
	snap.Users = DemoUsers()
}
