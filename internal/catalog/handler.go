package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

type ProductReader interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Handler struct {
	products ProductReader
	logger   *slog.Logger
}

func NewHandler(products ProductReader, logger *slog.Logger) *Handler {
	return &Handler{
		products: products,
		logger:   logger,
	}
}

// HandleGet serves the product detail view. Products awaiting supplier
// approval are not visible to shoppers.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil || !product.Approved {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
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
