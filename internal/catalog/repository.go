package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductUnavailable = errors.New("product unavailable")
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	product := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, approved, supplier_id
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Price, &product.Stock, &product.Approved, &product.SupplierID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return product, nil
}

// Reserve decrements stock iff enough is available, in a single statement,
// so concurrent checkouts of the same product cannot oversell.
func (r *ProductRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}

	return nil
}

// Release returns a previously reserved quantity to stock. Used as the
// compensating step when a later reservation in the same checkout fails.
func (r *ProductRepository) Release(ctx context.Context, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return errors.New("unknown product on stock release")
	}

	return nil
}
