package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

type Handler struct {
	repo   *CartRepository
	logger *slog.Logger
}

func NewHandler(repo *CartRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type cartResponse struct {
	UserID string            `json:"user_id"`
	Items  []domain.CartLine `json:"items"`
	Total  int64             `json:"total"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	lines, err := h.repo.LoadLines(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var total int64
	for _, line := range lines {
		total += line.Product.Price * int64(line.Quantity)
	}

	if lines == nil {
		lines = []domain.CartLine{}
	}

	h.writeJSON(w, http.StatusOK, cartResponse{UserID: userID, Items: lines, Total: total})
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" || req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, "product_id and a positive quantity are required")
		return
	}

	if err := h.repo.AddItem(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.logger.Error("failed to add cart item", "error", err, "user_id", userID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart item added", "user_id", userID, "product_id", req.ProductID, "quantity", req.Quantity)
	w.WriteHeader(http.StatusNoContent)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	productID := r.PathValue("productId")
	if userID == "" || productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user or product id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	if err := h.repo.UpdateItem(r.Context(), userID, productID, req.Quantity); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			h.writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		h.logger.Error("failed to update cart item", "error", err, "user_id", userID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	productID := r.PathValue("productId")
	if userID == "" || productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user or product id")
		return
	}

	if err := h.repo.RemoveItem(r.Context(), userID, productID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			h.writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		h.logger.Error("failed to remove cart item", "error", err, "user_id", userID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
