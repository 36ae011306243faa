package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/greenlot/backend-dispensary/internal/cart"
	"github.com/greenlot/backend-dispensary/internal/catalog"
	"github.com/greenlot/backend-dispensary/internal/common"
	"github.com/greenlot/backend-dispensary/internal/compliance"
	"github.com/greenlot/backend-dispensary/internal/config"
	"github.com/greenlot/backend-dispensary/internal/discount"
	"github.com/greenlot/backend-dispensary/internal/events"
	"github.com/greenlot/backend-dispensary/internal/health"
	"github.com/greenlot/backend-dispensary/internal/obs"
	"github.com/greenlot/backend-dispensary/internal/ratelimit"
	"github.com/greenlot/backend-dispensary/internal/security"
	"github.com/greenlot/backend-dispensary/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "dispensary")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "dispensary-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
	} else {
		logger.Info().Msg("redis not configured, idempotency and catalog cache disabled")
	}

	var catalogSource catalog.Lookup
	switch {
	case cfg.CatalogBaseURL != "":
		catalogSource = catalog.NewClient(cfg.CatalogBaseURL, &http.Client{Timeout: 5 * time.Second})
	case cfg.CatalogPath != "":
		static, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load product catalog")
		}
		catalogSource = static
	default:
		logger.Fatal().Msg("either CATALOG_BASE_URL or CATALOG_PATH is required")
	}
	catalogSvc := &catalog.Service{Source: catalogSource, Redis: redisClient, TTL: cfg.CatalogCacheTTL}
	catalogHandler := &catalog.Handler{Svc: catalogSvc}

	var discounts discount.Catalog
	if cfg.DiscountCatalogPath != "" {
		loaded, err := discount.LoadFile(cfg.DiscountCatalogPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load discount catalog")
		}
		discounts = loaded
	} else {
		discounts = discount.BuiltinSample()
	}
	discountHandler := &discount.Handler{Catalog: discounts}

	bus := &events.Bus{
		Store:     &events.MemoryStore{},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	cartSvc := &cart.Service{
		Sessions:  cart.NewStore(cfg.SessionTTL),
		Catalog:   catalogSvc,
		Discounts: discounts,
		Logger:    logger,
		Compliance: compliance.Evaluator{Rules: compliance.Rules{
			AdultUseMinAge: cfg.AdultUseMinAge,
			LimitUnit:      cfg.LimitUnit,
		}},
		Bus:           bus,
		DefaultTaxBps: cfg.DefaultTaxBps,
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	settlementSvc := &settlement.Service{
		Cart:     cartSvc,
		Records:  settlement.NewMemoryStore(),
		Bus:      bus,
		Logger:   logger,
		Currency: cfg.CurrencyCode,
	}
	settlementHandler := &settlement.Handler{Svc: settlementSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: envBool("SECURE_HEADERS", true), EnableHSTS: envBool("SECURE_HSTS", false)}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	if redisClient != nil {
		limiter := ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl"},
			Config: ratelimit.Config{
				Key:    common.ClientIP,
				Window: time.Minute,
				Max:    envInt("RATE_LIMIT_PER_MINUTE", 300),
			},
			OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
		}
		r.Use(limiter.Middleware)
	}

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:        readinessChecker{catalog: catalogSvc, redis: redisClient},
		CatalogTimeout: envDurationMillis("HEALTH_READY_CATALOG_TIMEOUT_MS", 500),
		RedisTimeout:   envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products/{id}", catalogHandler.Get)
		v.Get("/discounts", discountHandler.List)
		v.Get("/transactions/{id}", settlementHandler.Transaction)

		v.Route("/sessions", func(s chi.Router) {
			s.Post("/", cartHandler.Create)
			s.Get("/{id}", cartHandler.Get)
			s.Get("/{id}/compliance", cartHandler.Compliance)
			s.Post("/{id}/lines", cartHandler.AddLine)
			s.Patch("/{id}/lines/{productId}", cartHandler.UpdateLine)
			s.Delete("/{id}/lines/{productId}", cartHandler.RemoveLine)
			s.Delete("/{id}/lines", cartHandler.Clear)
			s.Post("/{id}/discounts", cartHandler.ApplyDiscount)
			s.Delete("/{id}/discounts/{discountId}", cartHandler.RemoveDiscount)
			s.Put("/{id}/customer", cartHandler.AttachCustomer)
			s.With(idem.Middleware).Post("/{id}/settle", settlementHandler.Settle)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	catalog *catalog.Service
	redis   *redis.Client
}

func (c readinessChecker) PingCatalog(ctx context.Context, timeout time.Duration) error {
	if c.catalog == nil {
		return errors.New("catalog not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	// any answer, including not-found, proves the source is reachable
	if _, err := c.catalog.Product(ctx, "healthcheck"); err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
		return err
	}
	return nil
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return health.Disabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	return common.AtoiDefault(strings.TrimSpace(os.Getenv(key)), fallback)
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
