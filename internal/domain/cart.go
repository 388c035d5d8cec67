package domain

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	UserID string     `json:"user_id"`
	Items  []CartItem `json:"items"`
}

// CartLine is a cart item resolved against the current catalog, as
// checkout sees it.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}
