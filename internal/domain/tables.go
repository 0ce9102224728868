package domain

// Collection names one persisted record set.
type Collection string

const (
	CollectionProducts Collection = "products"
	CollectionUsers    Collection = "users"
	CollectionCarts    Collection = "carts"
	CollectionOrders   Collection = "orders"
)

// Collections lists every persisted collection in load order.
var Collections = []Collection{
	CollectionProducts,
	CollectionUsers,
	CollectionCarts,
	CollectionOrders,
}
