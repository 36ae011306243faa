package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetchesProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/flower-og", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": Product{
			ID: "flower-og", Name: "OG Kush", Category: "flower", Unit: "g",
			Price: 1000, Available: decimal.NewFromInt(100),
		}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	product, err := client.Product(context.Background(), "flower-og")
	require.NoError(t, err)
	assert.Equal(t, "OG Kush", product.Name)
	assert.Equal(t, int64(1000), product.Price)
}

func TestClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, err := client.Product(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": Product{
			ID: "flower-og", Name: "OG Kush", Category: "flower", Unit: "g",
			Price: 1000, Available: decimal.NewFromInt(100),
		}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	client.HTTP.BaseBackoff = 1
	product, err := client.Product(context.Background(), "flower-og")
	require.NoError(t, err)
	assert.Equal(t, "flower-og", product.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientRejectsEmptyID(t *testing.T) {
	client := NewClient("http://catalog.internal", nil)
	_, err := client.Product(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrProductNotFound)
}
