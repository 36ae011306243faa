package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/greenlot/backend-dispensary/internal/catalog"
	"github.com/greenlot/backend-dispensary/internal/common"
	"github.com/greenlot/backend-dispensary/internal/customer"
	"github.com/greenlot/backend-dispensary/internal/discount"
)

var validate = validator.New()

// Handler wires checkout session operations to HTTP.
type Handler struct {
	Svc *Service
}

// Create opens a new checkout session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	view, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get returns the session preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddLine adds a product to the session.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		ProductID string          `json:"productId"`
		Quantity  decimal.Decimal `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if strings.TrimSpace(payload.ProductID) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	view, err := h.Svc.AddLine(r.Context(), chi.URLParam(r, "id"), payload.ProductID, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// UpdateLine changes a line quantity. Zero or negative removes the line.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	view, err := h.Svc.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"), payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveLine deletes a line from the session.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	view, err := h.Svc.RemoveLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Clear drops every line from the session.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	view, err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// ApplyDiscount attaches a catalog discount to the session.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		DiscountID string `json:"discountId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if strings.TrimSpace(payload.DiscountID) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "discountId is required", nil)
		return
	}
	view, err := h.Svc.ApplyDiscount(r.Context(), chi.URLParam(r, "id"), payload.DiscountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveDiscount detaches a discount from the session.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	view, err := h.Svc.RemoveDiscount(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "discountId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AttachCustomer binds a customer snapshot to the session.
func (h *Handler) AttachCustomer(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		ID             string                  `json:"id" validate:"required"`
		Name           string                  `json:"name" validate:"required"`
		DateOfBirth    time.Time               `json:"dateOfBirth" validate:"required"`
		Classification customer.Classification `json:"classification" validate:"required,oneof=adult-use medical dual"`
		Identification customer.Identification `json:"identification"`
		MedicalCard    *customer.MedicalCard   `json:"medicalCard"`
		NewCustomer    bool                    `json:"newCustomer"`
		Daily          customer.LimitWindow    `json:"daily"`
		Monthly        customer.LimitWindow    `json:"monthly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer", map[string]any{"validation": err.Error()})
		return
	}
	profile := customer.Profile{
		ID:             payload.ID,
		Name:           payload.Name,
		DateOfBirth:    payload.DateOfBirth,
		Classification: payload.Classification,
		Identification: payload.Identification,
		MedicalCard:    payload.MedicalCard,
		NewCustomer:    payload.NewCustomer,
		Daily:          payload.Daily,
		Monthly:        payload.Monthly,
	}
	view, err := h.Svc.AttachCustomer(r.Context(), chi.URLParam(r, "id"), profile)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Compliance returns the current regulatory check result on its own.
func (h *Handler) Compliance(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view.Compliance})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "LINE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrDiscountNotFound):
		common.JSONError(w, http.StatusNotFound, "DISCOUNT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, catalog.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrQuantityNotPositive):
		common.JSONError(w, http.StatusUnprocessableEntity, "QUANTITY_NOT_POSITIVE", err.Error(), nil)
	case errors.Is(err, ErrQuantityExceedsStock):
		common.JSONError(w, http.StatusUnprocessableEntity, "STOCK_EXCEEDED", err.Error(), nil)
	case errors.Is(err, discount.ErrMinimumSpendUnmet),
		errors.Is(err, discount.ErrCustomerRequired),
		errors.Is(err, discount.ErrCustomerTypeNotEligible),
		errors.Is(err, discount.ErrNewCustomerOnly):
		common.JSONError(w, http.StatusUnprocessableEntity, "DISCOUNT_NOT_ELIGIBLE", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
