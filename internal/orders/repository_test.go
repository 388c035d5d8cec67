package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

func newMock(t *testing.T) (*OrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewOrderRepository(db), mock
}

func orderColumns() []string {
	return []string{
		"id", "customer_id", "status", "total",
		"shipping_address", "shipping_city", "shipping_country",
		"phone_number", "payment_method", "notes",
		"payment_reference", "payment_provider", "paid_at", "delivered_at", "created_at",
	}
}

func orderRow(id string, status domain.OrderStatus, reference any) *sqlmock.Rows {
	var provider any
	if reference != nil {
		provider = "MTN"
	}
	return sqlmock.NewRows(orderColumns()).AddRow(
		id, "user-1", string(status), int64(36000),
		"KG 11 Ave", "Kigali", "Rwanda",
		"250788123456", "mobile_money", "",
		reference, provider, nil, nil, time.Now().UTC(),
	)
}

func itemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"product_id", "quantity", "unit_price"}).
		AddRow("p1", 2, int64(15000)).
		AddRow("p2", 2, int64(3000))
}

func TestOrderRepositoryCreate(t *testing.T) {
	t.Run("inserts order and items in one transaction", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO orders").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO order_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO order_items").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		order := &domain.Order{
			CustomerID: "user-1",
			Status:     domain.OrderStatusPending,
			Total:      36000,
			Items: []domain.OrderItem{
				{ProductID: "p1", Quantity: 2, UnitPrice: 15000},
				{ProductID: "p2", Quantity: 2, UnitPrice: 3000},
			},
			ShippingAddress: domain.ShippingAddress{Address: "KG 11 Ave", City: "Kigali", Country: "Rwanda"},
			PhoneNumber:     "250788123456",
			CreatedAt:       time.Now().UTC(),
		}

		if err := repo.Create(context.Background(), order); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID == "" {
			t.Error("expected an id assigned on create")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("rejects a total that does not match the item sum", func(t *testing.T) {
		repo, _ := newMock(t)

		order := &domain.Order{
			Total: 99999,
			Items: []domain.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 1000}},
		}

		if err := repo.Create(context.Background(), order); err == nil {
			t.Fatal("expected error for mismatched total")
		}
	})

	t.Run("rolls back when an item insert fails", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO orders").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO order_items").
			WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		order := &domain.Order{
			Total: 1000,
			Items: []domain.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 1000}},
		}

		if err := repo.Create(context.Background(), order); err == nil {
			t.Fatal("expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestOrderRepositoryGetByReference(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT id, customer_id, status, total").
		WithArgs("ECR-abc").
		WillReturnRows(orderRow("order-1", domain.OrderStatusPaymentPending, "ECR-abc"))
	mock.ExpectQuery("SELECT product_id, quantity, unit_price").
		WithArgs("order-1").
		WillReturnRows(itemRows())

	order, err := repo.GetByReference(context.Background(), "ECR-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order == nil {
		t.Fatal("expected an order")
	}
	if order.PaymentReference != "ECR-abc" || order.Status != domain.OrderStatusPaymentPending {
		t.Errorf("unexpected order %+v", order)
	}
	if order.PaymentProvider != "MTN" {
		t.Errorf("expected the recorded provider on the order, got %q", order.PaymentProvider)
	}
	if len(order.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(order.Items))
	}
	if order.PaidAt != nil {
		t.Error("expected nil paid_at on a pending order")
	}

	mock.ExpectQuery("SELECT id, customer_id, status, total").
		WithArgs("ECR-ghost").
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	order, err = repo.GetByReference(context.Background(), "ECR-ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil for unknown reference, got %+v", order)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOrderRepositorySetPaymentReference(t *testing.T) {
	t.Run("assigns once", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectExec("UPDATE orders SET payment_reference").
			WithArgs("order-1", "ECR-abc", "MTN").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.SetPaymentReference(context.Background(), "order-1", "ECR-abc", "MTN"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("refuses to reassign", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectExec("UPDATE orders SET payment_reference").
			WithArgs("order-1", "ECR-second", "AIRTEL").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id, customer_id, status, total").
			WithArgs("order-1").
			WillReturnRows(orderRow("order-1", domain.OrderStatusPaymentPending, "ECR-first"))
		mock.ExpectQuery("SELECT product_id, quantity, unit_price").
			WithArgs("order-1").
			WillReturnRows(itemRows())

		err := repo.SetPaymentReference(context.Background(), "order-1", "ECR-second", "AIRTEL")
		if !errors.Is(err, ErrReferenceAssigned) {
			t.Fatalf("expected ErrReferenceAssigned, got %v", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectExec("UPDATE orders SET payment_reference").
			WithArgs("ghost", "ECR-abc", "MTN").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id, customer_id, status, total").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(orderColumns()))

		err := repo.SetPaymentReference(context.Background(), "ghost", "ECR-abc", "MTN")
		if !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})
}

func TestOrderRepositoryTransition(t *testing.T) {
	t.Run("applies an allowed transition", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("payment_pending"))
		mock.ExpectExec("UPDATE orders").
			WithArgs("order-1", domain.OrderStatusPaid).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT id, customer_id, status, total").
			WithArgs("order-1").
			WillReturnRows(orderRow("order-1", domain.OrderStatusPaid, "ECR-abc"))
		mock.ExpectQuery("SELECT product_id, quantity, unit_price").
			WithArgs("order-1").
			WillReturnRows(itemRows())

		order, err := repo.Transition(context.Background(), "order-1", domain.OrderStatusPaid, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusPaid {
			t.Errorf("expected paid, got %s", order.Status)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("paid"))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT id, customer_id, status, total").
			WithArgs("order-1").
			WillReturnRows(orderRow("order-1", domain.OrderStatusPaid, "ECR-abc"))
		mock.ExpectQuery("SELECT product_id, quantity, unit_price").
			WithArgs("order-1").
			WillReturnRows(itemRows())

		order, err := repo.Transition(context.Background(), "order-1", domain.OrderStatusPaid, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusPaid {
			t.Errorf("expected paid, got %s", order.Status)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("no update statement may run on a same-status call: %v", err)
		}
	})

	t.Run("illegal transition", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("delivered"))
		mock.ExpectRollback()

		_, err := repo.Transition(context.Background(), "order-1", domain.OrderStatusPending, false)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("expected ErrIllegalTransition, got %v", err)
		}
	})

	t.Run("override bypasses the state machine", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WithArgs("order-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancelled"))
		mock.ExpectExec("UPDATE orders").
			WithArgs("order-1", domain.OrderStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("SELECT id, customer_id, status, total").
			WithArgs("order-1").
			WillReturnRows(orderRow("order-1", domain.OrderStatusPending, nil))
		mock.ExpectQuery("SELECT product_id, quantity, unit_price").
			WithArgs("order-1").
			WillReturnRows(itemRows())

		order, err := repo.Transition(context.Background(), "order-1", domain.OrderStatusPending, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusPending {
			t.Errorf("expected pending, got %s", order.Status)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM orders").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		_, err := repo.Transition(context.Background(), "ghost", domain.OrderStatusPaid, false)
		if !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})
}
