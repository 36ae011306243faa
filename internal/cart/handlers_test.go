package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenlot/backend-dispensary/internal/cart"
	"github.com/greenlot/backend-dispensary/internal/catalog"
	"github.com/greenlot/backend-dispensary/internal/compliance"
	"github.com/greenlot/backend-dispensary/internal/discount"
)

type stubLookup struct {
	products map[string]catalog.Product
}

func (s stubLookup) Product(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc := &cart.Service{
		Sessions: cart.NewStore(time.Hour),
		Catalog: stubLookup{products: map[string]catalog.Product{
			"flower-og": {ID: "flower-og", Name: "OG Kush", Category: "flower", Unit: "g",
				Price: 1000, Available: decimal.NewFromInt(100)},
		}},
		Discounts:  discount.BuiltinSample(),
		Compliance: compliance.Evaluator{Rules: compliance.Rules{AdultUseMinAge: 21, LimitUnit: "g"}},
	}
	h := &cart.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Route("/sessions", func(s chi.Router) {
		s.Post("/", h.Create)
		s.Get("/{id}", h.Get)
		s.Get("/{id}/compliance", h.Compliance)
		s.Post("/{id}/lines", h.AddLine)
		s.Patch("/{id}/lines/{productId}", h.UpdateLine)
		s.Delete("/{id}/lines/{productId}", h.RemoveLine)
		s.Post("/{id}/discounts", h.ApplyDiscount)
		s.Put("/{id}/customer", h.AttachCustomer)
	})
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	rr := do(t, r, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r := newRouter(t)
	id := createSession(t, r)

	rr := do(t, r, http.MethodPost, "/sessions/"+id+"/lines", `{"productId":"flower-og","quantity":"3.5"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data struct {
			Totals struct {
				Subtotal int64 `json:"subtotal"`
				Tax      int64 `json:"tax"`
				Total    int64 `json:"total"`
			} `json:"totals"`
			Compliance struct {
				Pass       bool     `json:"pass"`
				Violations []string `json:"violations"`
			} `json:"compliance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(3500), resp.Data.Totals.Subtotal)
	assert.Equal(t, int64(280), resp.Data.Totals.Tax)
	assert.False(t, resp.Data.Compliance.Pass)

	rr = do(t, r, http.MethodPut, "/sessions/"+id+"/customer", `{
		"id":"cust-1","name":"Jordan Reyes","dateOfBirth":"1990-03-02T00:00:00Z",
		"classification":"adult-use",
		"identification":{"expiresAt":"2030-01-01T00:00:00Z","verified":true},
		"daily":{"current":"0","limit":"28"},"monthly":{"current":"0","limit":"224"}
	}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodGet, "/sessions/"+id+"/compliance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var comp struct {
		Data struct {
			Pass bool `json:"pass"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &comp))
	assert.True(t, comp.Data.Pass)
}

func TestHTTPErrorShapes(t *testing.T) {
	r := newRouter(t)
	id := createSession(t, r)

	rr := do(t, r, http.MethodGet, "/sessions/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodPost, "/sessions/"+id+"/lines", `{"productId":"flower-og","quantity":"0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "QUANTITY_NOT_POSITIVE")

	rr = do(t, r, http.MethodPost, "/sessions/"+id+"/lines", `{"productId":"flower-og","quantity":"1000"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "STOCK_EXCEEDED")

	rr = do(t, r, http.MethodPost, "/sessions/"+id+"/lines", `{"productId":"unknown","quantity":"1"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "PRODUCT_NOT_FOUND")

	rr = do(t, r, http.MethodPost, "/sessions/"+id+"/discounts", `{"discountId":"first-visit"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "DISCOUNT_NOT_ELIGIBLE")

	rr = do(t, r, http.MethodPut, "/sessions/"+id+"/customer", `{"id":"c","name":"n","dateOfBirth":"1990-03-02T00:00:00Z","classification":"guest"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
