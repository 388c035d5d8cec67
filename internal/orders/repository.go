package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrReferenceAssigned = errors.New("payment reference already assigned")
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists the order and its items in one transaction. Unit prices
// on the items are the prices at purchase time and never change afterwards.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	var sum int64
	for _, item := range order.Items {
		sum += int64(item.Quantity) * item.UnitPrice
	}
	if sum != order.Total {
		return fmt.Errorf("order total %d does not match item sum %d", order.Total, sum)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, status, total,
			shipping_address, shipping_city, shipping_country,
			phone_number, payment_method, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, order.ID, order.CustomerID, order.Status, order.Total,
		order.ShippingAddress.Address, order.ShippingAddress.City, order.ShippingAddress.Country,
		order.PhoneNumber, order.PaymentMethod, order.Notes, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		itemID := uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, itemID, order.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, "id", id)
}

// GetByReference looks an order up by its payment reference, the correlation
// key carried by provider webhooks.
func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	return r.getOne(ctx, "payment_reference", reference)
}

func (r *OrderRepository) getOne(ctx context.Context, column, value string) (*domain.Order, error) {
	order := &domain.Order{}
	var reference, provider sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, total,
			shipping_address, shipping_city, shipping_country,
			phone_number, payment_method, notes,
			payment_reference, payment_provider, paid_at, delivered_at, created_at
		FROM orders
		WHERE `+column+` = $1
	`, value).Scan(
		&order.ID, &order.CustomerID, &order.Status, &order.Total,
		&order.ShippingAddress.Address, &order.ShippingAddress.City, &order.ShippingAddress.Country,
		&order.PhoneNumber, &order.PaymentMethod, &order.Notes,
		&reference, &provider, &order.PaidAt, &order.DeliveredAt, &order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	order.PaymentReference = reference.String
	order.PaymentProvider = provider.String

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// SetPaymentReference assigns the reference and the provider it was issued
// by exactly once; an order whose reference is already set is never
// reassigned.
func (r *OrderRepository) SetPaymentReference(ctx context.Context, id, reference, provider string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_reference = $2, payment_provider = $3, updated_at = NOW()
		WHERE id = $1 AND payment_reference IS NULL
	`, id, reference, provider)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrOrderNotFound
		}
		return ErrReferenceAssigned
	}

	return nil
}

// Transition applies a status change guarded by the order state machine.
// Re-applying the current status is a no-op, so webhook replays and client
// retries are safe. paid_at and delivered_at are stamped on their matching
// transition and never overwritten. override lets an operator move an order
// out of a terminal state; the caller is responsible for authorizing it.
func (r *OrderRepository) Transition(ctx context.Context, id string, to domain.OrderStatus, override bool) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if current != to {
		if !override && !domain.CanTransition(current, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, to)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $2,
				paid_at = CASE WHEN $2 = 'paid' THEN COALESCE(paid_at, NOW()) ELSE paid_at END,
				delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, NOW()) ELSE delivered_at END,
				updated_at = NOW()
			WHERE id = $1
		`, id, to)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// ListByCustomer returns a customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, status, total,
			shipping_address, shipping_city, shipping_country,
			phone_number, payment_method, notes,
			payment_reference, payment_provider, paid_at, delivered_at, created_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		var reference, provider sql.NullString
		if err := rows.Scan(
			&order.ID, &order.CustomerID, &order.Status, &order.Total,
			&order.ShippingAddress.Address, &order.ShippingAddress.City, &order.ShippingAddress.Country,
			&order.PhoneNumber, &order.PaymentMethod, &order.Notes,
			&reference, &provider, &order.PaidAt, &order.DeliveredAt, &order.CreatedAt,
		); err != nil {
			return nil, err
		}
		order.PaymentReference = reference.String
		order.PaymentProvider = provider.String
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *orderMap[id])
	}

	return result, nil
}
