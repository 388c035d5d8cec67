package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/momo-checkout/internal/cart"
	"github.com/joao-fontenele/momo-checkout/internal/catalog"
	"github.com/joao-fontenele/momo-checkout/internal/domain"
	"github.com/joao-fontenele/momo-checkout/internal/payments"
)

type StatusChecker interface {
	CheckStatus(ctx context.Context, providerName, transactionID string) (*payments.StatusResult, error)
}

type Handler struct {
	service *Service
	orders  OrderStore
	status  StatusChecker
	logger  *slog.Logger
}

func NewHandler(service *Service, orders OrderStore, status StatusChecker, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		orders:  orders,
		status:  status,
		logger:  logger,
	}
}

type checkoutRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PhoneNumber     string                 `json:"phone_number"`
	PaymentMethod   string                 `json:"payment_method"`
	Notes           string                 `json:"notes,omitempty"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.ProcessCheckout(r.Context(), userID, Request{
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrEmptyCart):
			h.writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, catalog.ErrProductUnavailable),
			errors.Is(err, payments.ErrInvalidPhoneNumber),
			errors.Is(err, payments.ErrUnsupportedProvider):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, catalog.ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrPaymentInitiationFailed):
			h.writeError(w, http.StatusPaymentRequired, "failed to initiate payment, please try again")
		default:
			h.logger.Error("checkout failed", "error", err, "user_id", userID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

type pendingResponse struct {
	Order     *domain.Order `json:"order"`
	Reference string        `json:"payment_reference"`
	Provider  string        `json:"provider"`
}

// HandlePaymentPending backs the pending-payment view: the client polls it
// with the reference it was handed at checkout.
func (h *Handler) HandlePaymentPending(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	reference := r.URL.Query().Get("ref")
	if orderID == "" || reference == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id or payment reference")
		return
	}

	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if order.PaymentReference != reference {
		h.writeError(w, http.StatusBadRequest, "invalid payment reference")
		return
	}

	// The provider recorded at initiation time, not re-derived from the
	// phone number, so prefix table changes never reshuffle old orders.
	h.writeJSON(w, http.StatusOK, pendingResponse{Order: order, Reference: reference, Provider: order.PaymentProvider})
}

// HandlePaymentStatus polls the provider directly, the manual fallback when
// a webhook has not arrived.
func (h *Handler) HandlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := r.PathValue("transactionId")
	provider := r.URL.Query().Get("provider")
	if transactionID == "" || provider == "" {
		h.writeError(w, http.StatusBadRequest, "missing transaction id or provider")
		return
	}

	result, err := h.status.CheckStatus(r.Context(), provider, transactionID)
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			h.writeError(w, http.StatusBadRequest, "unsupported provider")
			return
		}
		h.logger.Error("payment status check failed", "error", err, "transaction_id", transactionID)
		h.writeError(w, http.StatusBadGateway, "provider unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
