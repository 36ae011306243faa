package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/greenlot/backend-dispensary/internal/pricing"
)

// ErrProductNotFound indicates the catalog has no product for the identifier.
var ErrProductNotFound = errors.New("product not found")

// Product is an immutable catalog record. Strain and potency fields are
// display metadata and never enter a calculation.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand,omitempty"`
	Category    string          `json:"category"`
	MedicalOnly bool            `json:"medicalOnly"`
	Unit        string          `json:"unit"`
	Price       pricing.Money   `json:"price"`
	TaxBps      *int            `json:"taxBps,omitempty"`
	Strain      *string         `json:"strain,omitempty"`
	THCPercent  *float64        `json:"thcPercent,omitempty"`
	CBDPercent  *float64        `json:"cbdPercent,omitempty"`
	Available   decimal.Decimal `json:"available"`
}

// Lookup supplies immutable product records to the engine. The engine only
// ever reads from it; stock decrements belong to the persistence layer.
type Lookup interface {
	Product(ctx context.Context, id string) (Product, error)
}
