package discount

import (
	"net/http"

	"github.com/greenlot/backend-dispensary/internal/common"
)

// Handler exposes the discount catalog to the register UI.
type Handler struct {
	Catalog Catalog
}

// List returns the discounts the register may offer.
func (h *Handler) List(w http.ResponseWriter, _ *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount catalog not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Catalog.List()})
}
