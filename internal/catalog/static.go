package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Static serves product snapshots from an in-memory set. Used for
// development registers and tests where no remote catalog is available.
type Static struct {
	byID map[string]Product
}

// NewStatic builds a static catalog from the provided products.
func NewStatic(products []Product) *Static {
	s := &Static{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		s.byID[p.ID] = p
	}
	return s
}

// LoadFile reads a JSON product list from disk.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read product catalog: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse product catalog: %w", err)
	}
	return NewStatic(products), nil
}

// Product implements Lookup.
func (s *Static) Product(_ context.Context, id string) (Product, error) {
	if s == nil {
		return Product{}, ErrProductNotFound
	}
	p, ok := s.byID[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}
