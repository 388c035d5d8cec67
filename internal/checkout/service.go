package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/momo-checkout/internal/cart"
	"github.com/joao-fontenele/momo-checkout/internal/catalog"
	"github.com/joao-fontenele/momo-checkout/internal/domain"
	"github.com/joao-fontenele/momo-checkout/internal/payments"
)

var ErrPaymentInitiationFailed = errors.New("payment initiation failed")

var errMissingShipping = errors.New("missing required shipping fields")

type CartStore interface {
	LoadLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	Clear(ctx context.Context, userID string) error
}

type CatalogStore interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	SetPaymentReference(ctx context.Context, id, reference, provider string) error
	Transition(ctx context.Context, id string, to domain.OrderStatus, override bool) (*domain.Order, error)
}

type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, req payments.InitiateRequest) (*payments.InitiateResult, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Request struct {
	ShippingAddress domain.ShippingAddress
	PhoneNumber     string
	PaymentMethod   string
	Notes           string
}

type Result struct {
	OrderID   string `json:"order_id"`
	Reference string `json:"payment_reference"`
	Provider  string `json:"provider"`
}

// Service runs the checkout saga: validate cart, create the order, reserve
// stock, initiate payment, clear the cart. Each step commits locally; a
// failed reservation is compensated by releasing what was already reserved.
type Service struct {
	carts     CartStore
	products  CatalogStore
	orders    OrderStore
	gateway   PaymentInitiator
	publisher EventPublisher
	logger    *slog.Logger

	checkouts metric.Int64Counter
}

func NewService(carts CartStore, products CatalogStore, orders OrderStore, gateway PaymentInitiator, publisher EventPublisher, logger *slog.Logger) *Service {
	checkouts, err := otel.Meter("checkout").Int64Counter("checkouts_total",
		metric.WithDescription("Checkout attempts by outcome"))
	if err != nil {
		logger.Error("failed to create checkout counter", "error", err)
	}

	return &Service{
		carts:     carts,
		products:  products,
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		checkouts: checkouts,
	}
}

// ValidateCart resolves the user's cart against the catalog and checks every
// line. It has no side effects.
func (s *Service) ValidateCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	lines, err := s.carts.LoadLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	if len(lines) == 0 {
		return nil, cart.ErrEmptyCart
	}

	for _, line := range lines {
		if line.Product.ID == "" || !line.Product.Approved {
			return nil, fmt.Errorf("%w: %s", catalog.ErrProductUnavailable, line.Product.Name)
		}
		if line.Quantity > line.Product.Stock {
			return nil, fmt.Errorf("%w for %s", catalog.ErrInsufficientStock, line.Product.Name)
		}
	}

	return lines, nil
}

func (s *Service) ProcessCheckout(ctx context.Context, userID string, req Request) (*Result, error) {
	if req.ShippingAddress.Address == "" || req.ShippingAddress.City == "" || req.ShippingAddress.Country == "" {
		s.count(ctx, "rejected")
		return nil, errMissingShipping
	}

	// Phone preconditions run before anything is written.
	msisdn, err := payments.NormalizePhone(req.PhoneNumber)
	if err != nil {
		s.count(ctx, "rejected")
		return nil, err
	}
	if _, err := payments.ClassifyProvider(msisdn); err != nil {
		s.count(ctx, "rejected")
		return nil, err
	}

	lines, err := s.ValidateCart(ctx, userID)
	if err != nil {
		s.count(ctx, "rejected")
		return nil, err
	}

	// Prices are copied into the order here; later catalog changes never
	// touch an existing order.
	items := make([]domain.OrderItem, 0, len(lines))
	var total int64
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.Price,
		})
		total += line.Product.Price * int64(line.Quantity)
	}

	order := &domain.Order{
		CustomerID:      userID,
		Items:           items,
		Total:           total,
		Status:          domain.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     msisdn,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.reserveStock(ctx, order, items); err != nil {
		s.count(ctx, "rejected")
		return nil, err
	}

	payment, err := s.gateway.InitiatePayment(ctx, payments.InitiateRequest{
		PhoneNumber: msisdn,
		Amount:      total,
		OrderID:     order.ID,
		Description: "Payment for order #" + shortID(order.ID),
	})
	if err != nil {
		// Reserved stock stays reserved on a failed initiation; a later
		// status poll or retry settles it.
		if _, terr := s.orders.Transition(ctx, order.ID, domain.OrderStatusFailed, false); terr != nil {
			s.logger.Error("failed to mark order failed", "error", terr, "order_id", order.ID)
		}
		s.count(ctx, "payment_failed")
		return nil, fmt.Errorf("%w: %s", ErrPaymentInitiationFailed, err)
	}

	if err := s.orders.SetPaymentReference(ctx, order.ID, payment.Reference, payment.Provider); err != nil {
		return nil, fmt.Errorf("store payment reference: %w", err)
	}

	if _, err := s.orders.Transition(ctx, order.ID, domain.OrderStatusPaymentPending, false); err != nil {
		return nil, fmt.Errorf("mark order payment pending: %w", err)
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		// The order is already in flight; a stale cart is recoverable.
		s.logger.Error("failed to clear cart after checkout", "error", err, "user_id", userID)
	}

	if s.publisher != nil {
		event := domain.OrderCreatedEvent{
			OrderID:    order.ID,
			CustomerID: userID,
			Items:      items,
			Total:      total,
			Reference:  payment.Reference,
			Provider:   payment.Provider,
			Timestamp:  order.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
			s.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	s.count(ctx, "succeeded")
	s.logger.Info("checkout complete",
		"order_id", order.ID, "user_id", userID, "total", total,
		"provider", payment.Provider, "reference", payment.Reference)

	return &Result{
		OrderID:   order.ID,
		Reference: payment.Reference,
		Provider:  payment.Provider,
	}, nil
}

// reserveStock decrements stock per item and compensates already-applied
// decrements when one fails mid-sequence.
func (s *Service) reserveStock(ctx context.Context, order *domain.Order, items []domain.OrderItem) error {
	var reserved []domain.OrderItem

	for _, item := range items {
		if err := s.products.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			s.releaseStock(ctx, reserved)

			if _, terr := s.orders.Transition(ctx, order.ID, domain.OrderStatusCancelled, false); terr != nil {
				s.logger.Error("failed to cancel order after reservation failure", "error", terr, "order_id", order.ID)
			}

			if errors.Is(err, catalog.ErrInsufficientStock) {
				return fmt.Errorf("%w for product %s", catalog.ErrInsufficientStock, item.ProductID)
			}
			return fmt.Errorf("reserve stock for product %s: %w", item.ProductID, err)
		}
		reserved = append(reserved, item)
	}

	return nil
}

func (s *Service) releaseStock(ctx context.Context, reserved []domain.OrderItem) {
	for _, item := range reserved {
		if err := s.products.Release(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("failed to release stock", "error", err, "product_id", item.ProductID, "quantity", item.Quantity)
		}
	}
}

func (s *Service) count(ctx context.Context, outcome string) {
	if s.checkouts != nil {
		s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
