package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrItemNotFound = errors.New("cart item not found")
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart := &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// LoadLines resolves the cart against the current catalog. Items whose
// product row is gone come back with a zero-value product so the caller can
// reject them instead of silently dropping them.
func (r *CartRepository) LoadLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.quantity, p.id, p.name, p.price, p.stock, p.approved, p.supplier_id
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.added_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		var id, name, supplierID sql.NullString
		var price sql.NullInt64
		var stock sql.NullInt64
		var approved sql.NullBool

		if err := rows.Scan(&line.Quantity, &id, &name, &price, &stock, &approved, &supplierID); err != nil {
			return nil, err
		}

		if id.Valid {
			line.Product = domain.Product{
				ID:         id.String,
				Name:       name.String,
				Price:      price.Int64,
				Stock:      int(stock.Int64),
				Approved:   approved.Bool,
				SupplierID: supplierID.String,
			}
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// AddItem merges quantities when the product is already in the cart.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, productID, quantity)
	return err
}

func (r *CartRepository) UpdateItem(ctx context.Context, userID, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1
	`, userID)
	return err
}
