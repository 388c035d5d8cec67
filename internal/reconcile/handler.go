package reconcile

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewHandler(reconciler *Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleWebhook always acknowledges with 200 so the provider stops
// redelivering; reconciliation failures are logged, never surfaced.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err, "provider", provider)
		h.acknowledge(w)
		return
	}

	if err := h.reconciler.Handle(r.Context(), provider, payload); err != nil {
		h.logger.Error("webhook reconciliation failed", "error", err, "provider", provider)
	}

	h.acknowledge(w)
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]bool{"success": true}); err != nil {
		h.logger.Error("failed to encode acknowledgment", "error", err)
	}
}
