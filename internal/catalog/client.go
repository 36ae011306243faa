package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/greenlot/backend-dispensary/internal/resilience"
)

// Client queries the remote catalog API for product snapshots. Outbound
// requests go through the resilience wrapper so a flapping catalog cannot
// stall the register.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
}

// NewClient constructs a catalog client with retry and breaker defaults.
func NewClient(baseURL string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     resilience.NewBreaker(5, 0.5, 0).WithTarget("catalog"),
			MaxAttempts: 3,
		},
	}
}

// Product fetches a single product snapshot by identifier.
func (c Client) Product(ctx context.Context, id string) (Product, error) {
	if c.BaseURL == "" {
		return Product{}, errors.New("catalog base url not configured")
	}
	if strings.TrimSpace(id) == "" {
		return Product{}, ErrProductNotFound
	}
	endpoint := c.BaseURL + "/products/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Product{}, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return Product{}, fmt.Errorf("query catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Product{}, ErrProductNotFound
	default:
		return Product{}, fmt.Errorf("catalog responded %d", resp.StatusCode)
	}

	var payload struct {
		Data Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Product{}, fmt.Errorf("decode catalog response: %w", err)
	}
	if payload.Data.ID == "" {
		return Product{}, ErrProductNotFound
	}
	return payload.Data, nil
}
