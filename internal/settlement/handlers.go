package settlement

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenlot/backend-dispensary/internal/cart"
	"github.com/greenlot/backend-dispensary/internal/common"
	"github.com/greenlot/backend-dispensary/internal/pricing"
)

// Handler wires settlement operations to HTTP.
type Handler struct {
	Svc *Service
}

// Settle finalises a checkout session.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement service not configured", nil)
		return
	}
	var payload struct {
		Method   string        `json:"method"`
		Tendered pricing.Money `json:"tendered"`
		Notes    string        `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	record, err := h.Svc.Settle(r.Context(), chi.URLParam(r, "id"), Method(payload.Method), payload.Tendered, payload.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": record})
}

// Transaction returns a settled transaction record.
func (h *Handler) Transaction(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement service not configured", nil)
		return
	}
	record, err := h.Svc.Transaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": record})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var compErr *ComplianceError
	if errors.As(err, &compErr) {
		common.JSONError(w, http.StatusConflict, "COMPLIANCE_BLOCKED", "settlement blocked by compliance",
			map[string]any{"violations": compErr.Violations})
		return
	}
	switch {
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", nil)
	case errors.Is(err, ErrCartEmpty):
		common.JSONError(w, http.StatusUnprocessableEntity, "CART_EMPTY", err.Error(), nil)
	case errors.Is(err, ErrPaymentMethodMissing):
		common.JSONError(w, http.StatusBadRequest, "PAYMENT_METHOD_MISSING", err.Error(), nil)
	case errors.Is(err, ErrInsufficientTender):
		common.JSONError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_TENDER", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
