package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
	"github.com/joao-fontenele/momo-checkout/internal/orders"
	"github.com/joao-fontenele/momo-checkout/internal/payments"
)

type WebhookParser interface {
	ParseWebhook(providerName string, payload []byte) (*payments.WebhookEvent, error)
}

type OrderStore interface {
	GetByReference(ctx context.Context, reference string) (*domain.Order, error)
	Transition(ctx context.Context, id string, to domain.OrderStatus, override bool) (*domain.Order, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Reconciler applies provider webhook callbacks to orders. Every path is
// idempotent: replays of a settled payment change nothing and raise no error.
type Reconciler struct {
	parser    WebhookParser
	orders    OrderStore
	publisher EventPublisher
	logger    *slog.Logger

	webhooks metric.Int64Counter
}

func NewReconciler(parser WebhookParser, orderStore OrderStore, publisher EventPublisher, logger *slog.Logger) *Reconciler {
	webhooks, err := otel.Meter("reconcile").Int64Counter("payment_webhooks_total",
		metric.WithDescription("Provider webhook deliveries by outcome"))
	if err != nil {
		logger.Error("failed to create webhook counter", "error", err)
	}

	return &Reconciler{
		parser:    parser,
		orders:    orderStore,
		publisher: publisher,
		logger:    logger,
		webhooks:  webhooks,
	}
}

func (r *Reconciler) Handle(ctx context.Context, provider string, payload []byte) error {
	event, err := r.parser.ParseWebhook(provider, payload)
	if err != nil {
		r.count(ctx, provider, "malformed")
		return fmt.Errorf("parse webhook: %w", err)
	}

	order, err := r.orders.GetByReference(ctx, event.Reference)
	if err != nil {
		r.count(ctx, provider, "error")
		return fmt.Errorf("look up order by reference: %w", err)
	}
	if order == nil {
		r.count(ctx, provider, "unknown_order")
		r.logger.Error("no order for webhook reference", "provider", provider, "reference", event.Reference)
		return fmt.Errorf("%w for reference %s", orders.ErrOrderNotFound, event.Reference)
	}

	if event.Amount != 0 && event.Amount != order.Total {
		r.logger.Warn("webhook amount differs from order total",
			"order_id", order.ID, "order_total", order.Total, "webhook_amount", event.Amount)
	}

	target, settles := payments.MapProviderStatus(event.Status)
	if !settles {
		r.count(ctx, provider, "unsettled")
		r.logger.Info("webhook status leaves order unchanged",
			"order_id", order.ID, "provider", provider, "status", event.Status)
		return nil
	}

	if order.Status == target {
		// Replay of an already-applied outcome.
		r.count(ctx, provider, "replay")
		return nil
	}

	updated, err := r.orders.Transition(ctx, order.ID, target, false)
	if err != nil {
		if errors.Is(err, orders.ErrIllegalTransition) {
			// A late or contradictory callback; the order keeps its state and
			// the provider still gets its acknowledgment.
			r.count(ctx, provider, "ignored")
			r.logger.Warn("webhook transition not applicable",
				"order_id", order.ID, "from", order.Status, "to", target)
			return nil
		}
		r.count(ctx, provider, "error")
		return fmt.Errorf("apply webhook transition: %w", err)
	}

	r.count(ctx, provider, "applied")
	r.logger.Info("order reconciled from webhook",
		"order_id", updated.ID, "provider", provider, "status", updated.Status)

	if target == domain.OrderStatusPaid && r.publisher != nil {
		event := domain.PaymentSettledEvent{
			OrderID:    updated.ID,
			CustomerID: updated.CustomerID,
			Reference:  updated.PaymentReference,
			Status:     updated.Status,
			Amount:     updated.Total,
			Timestamp:  time.Now().UTC(),
		}
		if err := r.publisher.Publish(ctx, updated.ID, event); err != nil {
			r.logger.Error("failed to publish payment settled event", "error", err, "order_id", updated.ID)
		}
	}

	return nil
}

func (r *Reconciler) count(ctx context.Context, provider, outcome string) {
	if r.webhooks != nil {
		r.webhooks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("outcome", outcome),
		))
	}
}
