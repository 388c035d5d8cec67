package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

// NotificationHandler turns checkout events into customer emails through the
// email service. Delivery failures propagate so the message is redelivered.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "customer_id", event.CustomerID)

	body := map[string]string{
		"to":      event.CustomerID + "@example.com",
		"subject": "Order Received: " + event.OrderID,
		"body": fmt.Sprintf(
			"Your order %s for %d RWF is awaiting payment. Approve the %s request on your phone to complete it.",
			event.OrderID, event.Total, event.Provider),
	}

	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send order received email: %w", err)
	}

	return nil
}

func (h *NotificationHandler) HandlePaymentSettled(ctx context.Context, payload []byte) error {
	var event domain.PaymentSettledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment settled event: %w", err)
	}

	h.logger.Info("processing payment settled event", "order_id", event.OrderID, "status", event.Status)

	body := map[string]string{
		"to":      event.CustomerID + "@example.com",
		"subject": "Payment Confirmed: " + event.OrderID,
		"body": fmt.Sprintf("We received %d RWF for order %s. Your order is being prepared for shipping.",
			event.Amount, event.OrderID),
	}

	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send payment confirmation email: %w", err)
	}

	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
