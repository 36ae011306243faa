package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenlot/backend-dispensary/internal/common"
)

// Handler exposes read-only product lookups to the register UI.
type Handler struct {
	Svc Lookup
}

// Get returns a single product snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	id := chi.URLParam(r, "id")
	product, err := h.Svc.Product(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusBadGateway, "CATALOG_ERROR", "unable to load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}
