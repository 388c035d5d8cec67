package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

type InitiateRequest struct {
	PhoneNumber string
	Amount      int64
	OrderID     string
	Description string
}

type InitiateResult struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id"`
	Provider      string `json:"provider"`
}

// Gateway fronts the mobile-money providers: it classifies the phone number,
// generates the payment reference, and dispatches to the selected provider.
type Gateway struct {
	providers       map[string]Provider
	callbackBaseURL string
	timeout         time.Duration
	logger          *slog.Logger
}

func NewGateway(callbackBaseURL string, timeout time.Duration, logger *slog.Logger, providers ...Provider) *Gateway {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Gateway{
		providers:       byName,
		callbackBaseURL: callbackBaseURL,
		timeout:         timeout,
		logger:          logger,
	}
}

// NewReference generates a globally unique payment reference for one
// initiation attempt.
func NewReference() string {
	return "ECR-" + uuid.New().String()
}

func (g *Gateway) InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	msisdn, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	name, err := ClassifyProvider(msisdn)
	if err != nil {
		return nil, err
	}

	provider, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s not configured", ErrUnsupportedProvider, name)
	}

	reference := NewReference()
	callbackURL := fmt.Sprintf("%s/checkout/webhook/%s", g.callbackBaseURL, strings.ToLower(name))

	// Provider calls get a hard deadline. A timeout here is not proof of
	// failure: the webhook or a status poll settles the real outcome.
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := provider.RequestToPay(callCtx, PaymentRequest{
		PhoneNumber: msisdn,
		Amount:      req.Amount,
		Reference:   reference,
		CallbackURL: callbackURL,
	})
	if err != nil {
		g.logger.Error("payment initiation failed",
			"provider", name, "reference", reference, "order_id", req.OrderID, "error", err)
		return nil, err
	}

	g.logger.Info("payment initiated",
		"provider", name, "reference", reference, "order_id", req.OrderID, "amount", req.Amount)

	return &InitiateResult{
		Reference:     reference,
		TransactionID: result.TransactionID,
		Provider:      name,
	}, nil
}

func (g *Gateway) CheckStatus(ctx context.Context, providerName, transactionID string) (*StatusResult, error) {
	provider, ok := g.providers[strings.ToUpper(providerName)]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return provider.CheckStatus(callCtx, transactionID)
}

func (g *Gateway) ParseWebhook(providerName string, payload []byte) (*WebhookEvent, error) {
	provider, ok := g.providers[strings.ToUpper(providerName)]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	return provider.ParseWebhook(payload)
}

// MapProviderStatus translates the providers' status vocabulary into the
// order state machine. The second return reports whether the status settles
// the payment at all; unknown vocabulary leaves the order untouched.
func MapProviderStatus(status string) (domain.OrderStatus, bool) {
	switch strings.ToUpper(status) {
	case "SUCCESS", "COMPLETED", "PAID":
		return domain.OrderStatusPaid, true
	case "FAILED", "CANCELLED":
		return domain.OrderStatusFailed, true
	default:
		return domain.OrderStatusPending, false
	}
}
