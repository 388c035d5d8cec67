package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

type Handler struct {
	repo   *OrderRepository
	logger *slog.Logger
}

func NewHandler(repo *OrderRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Customers only see their own orders.
	if order == nil || order.CustomerID != r.Header.Get("X-User-Id") {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	result, err := h.repo.ListByCustomer(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

type updateStatusRequest struct {
	Status   domain.OrderStatus `json:"status"`
	Override bool               `json:"override,omitempty"`
}

// HandleUpdateStatus is the supplier/admin transition endpoint. Ownership and
// role checks happen in the outer auth layer; override is the escape hatch
// for moving an order out of a terminal state.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "unrecognized order status")
		return
	}

	order, err := h.repo.Transition(r.Context(), id, req.Status, req.Override)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrIllegalTransition):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("failed to update order status", "error", err, "id", id)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
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
