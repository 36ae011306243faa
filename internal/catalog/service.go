package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service resolves products through the configured source with an optional
// redis read-through cache. Cached snapshots only shorten lookups; line
// prices stay sticky regardless because they are captured at add time.
type Service struct {
	Source Lookup
	Redis  *redis.Client
	TTL    time.Duration
}

const cacheKeyPrefix = "catalog:product:"

// Product implements Lookup.
func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	if s == nil || s.Source == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	if cached, ok := s.fromCache(ctx, id); ok {
		return cached, nil
	}
	product, err := s.Source.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	s.toCache(ctx, id, product)
	return product, nil
}

func (s *Service) fromCache(ctx context.Context, id string) (Product, bool) {
	if s.Redis == nil || s.TTL <= 0 {
		return Product{}, false
	}
	data, err := s.Redis.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err != nil {
		return Product{}, false
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, false
	}
	return p, true
}

func (s *Service) toCache(ctx context.Context, id string, p Product) {
	if s.Redis == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = s.Redis.Set(ctx, cacheKeyPrefix+id, data, s.TTL).Err()
}
