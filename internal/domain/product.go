package domain

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Stock      int    `json:"stock"`
	Approved   bool   `json:"approved"`
	SupplierID string `json:"supplier_id"`
}
