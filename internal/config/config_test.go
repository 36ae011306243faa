package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":                      "",
		"PORT":                         "",
		"CURRENCY_CODE":                "",
		"PRICING_DEFAULT_TAX_BPS":      "",
		"COMPLIANCE_ADULT_USE_MIN_AGE": "",
		"COMPLIANCE_LIMIT_UNIT":        "",
		"SESSION_TTL":                  "",
	})
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, "USD", cfg.CurrencyCode)
	assert.Equal(t, 800, cfg.DefaultTaxBps)
	assert.Equal(t, 21, cfg.AdultUseMinAge)
	assert.Equal(t, "g", cfg.LimitUnit)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"PORT":                         "9090",
		"CORS_ALLOWED_ORIGINS":         "https://pos.example.com, https://admin.example.com",
		"CATALOG_BASE_URL":             "http://catalog.internal:8081",
		"CATALOG_CACHE_TTL":            "30s",
		"PRICING_DEFAULT_TAX_BPS":      "1500",
		"COMPLIANCE_ADULT_USE_MIN_AGE": "19",
		"COMPLIANCE_LIMIT_UNIT":        "oz",
		"SESSION_TTL":                  "45m",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr())
	assert.Equal(t, []string{"https://pos.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "http://catalog.internal:8081", cfg.CatalogBaseURL)
	assert.Equal(t, 30*time.Second, cfg.CatalogCacheTTL)
	assert.Equal(t, 1500, cfg.DefaultTaxBps)
	assert.Equal(t, 19, cfg.AdultUseMinAge)
	assert.Equal(t, "oz", cfg.LimitUnit)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
}

func TestParseIntFallsBackOnGarbage(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"PRICING_DEFAULT_TAX_BPS": "eight hundred",
	})
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.DefaultTaxBps)
}
