package discount

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/greenlot/backend-dispensary/internal/customer"
)

// Catalog supplies the discounts a register may offer. It is injected the
// same way the product catalog is: the engine consumes it, never defines it.
type Catalog interface {
	Get(id string) (Discount, bool)
	List() []Discount
}

// StaticCatalog serves a fixed in-memory discount set in stable order.
type StaticCatalog struct {
	discounts []Discount
	byID      map[string]Discount
}

// NewStaticCatalog builds a catalog from the provided discounts. Later
// duplicates of an identifier win.
func NewStaticCatalog(discounts []Discount) *StaticCatalog {
	c := &StaticCatalog{byID: make(map[string]Discount, len(discounts))}
	for _, d := range discounts {
		if d.ID == "" {
			continue
		}
		if _, exists := c.byID[d.ID]; !exists {
			c.discounts = append(c.discounts, d)
		}
		c.byID[d.ID] = d
	}
	return c
}

// LoadFile reads a JSON discount list from disk.
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read discount catalog: %w", err)
	}
	var discounts []Discount
	if err := json.Unmarshal(data, &discounts); err != nil {
		return nil, fmt.Errorf("parse discount catalog: %w", err)
	}
	return NewStaticCatalog(discounts), nil
}

// Get returns the discount for the identifier.
func (c *StaticCatalog) Get(id string) (Discount, bool) {
	if c == nil {
		return Discount{}, false
	}
	d, ok := c.byID[id]
	return d, ok
}

// List returns the catalog in definition order.
func (c *StaticCatalog) List() []Discount {
	if c == nil {
		return nil
	}
	out := make([]Discount, len(c.discounts))
	copy(out, c.discounts)
	return out
}

// BuiltinSample returns the default discount set used when no catalog file is
// configured. Useful for development registers.
func BuiltinSample() *StaticCatalog {
	return NewStaticCatalog([]Discount{
		{ID: "first-visit", Name: "First Visit 15%", Kind: KindPercent, PercentBps: 1500,
			Eligibility: &Eligibility{NewCustomerOnly: true}},
		{ID: "medical-10", Name: "Medical Patient 10%", Kind: KindPercent, PercentBps: 1000,
			Eligibility: &Eligibility{CustomerTypes: []customer.Classification{customer.ClassificationMedical, customer.ClassificationDual}}},
		{ID: "early-bird", Name: "Early Bird $5", Kind: KindFixed, Value: 500,
			Eligibility: &Eligibility{MinSubtotal: 2500}},
		{ID: "bogo-preroll", Name: "Buy One Get One", Kind: KindBogo},
		{ID: "loyalty-300", Name: "Loyalty Redemption $3", Kind: KindLoyalty, Value: 300},
	})
}
