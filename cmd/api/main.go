package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/common"
	"github.com/noah-isme/backend-invoicing/internal/config"
	"github.com/noah-isme/backend-invoicing/internal/health"
	"github.com/noah-isme/backend-invoicing/internal/obs"
	"github.com/noah-isme/backend-invoicing/internal/pricing"
	"github.com/noah-isme/backend-invoicing/internal/ratelimit"
	"github.com/noah-isme/backend-invoicing/internal/security"
	"github.com/noah-isme/backend-invoicing/internal/statement"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("version", version).Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, registry)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "invoicing-api",
			ServiceVersion: version,
			Endpoint:       cfg.OTLPEndpoint,
			Exporter:       cfg.TracingExporter,
			SamplingRatio:  cfg.TracingSampleRatio,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	validate := common.NewValidator()
	statementService := statement.NewService(statement.ServiceConfig{
		Logger:      logger,
		MaxBookings: cfg.StatementMaxBookings,
	})
	statementHandler := statement.NewHandler(statement.HandlerConfig{Service: statementService, Validator: validate})
	pricingHandler := pricing.NewHandler(validate)
	probes := map[string]health.Probe{"engine": engineProbe}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		rdb, err := newRedisClient(cfg, tracingEnabled)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		if rdb != nil {
			defer func() { _ = rdb.Close() }()
			probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
		switch cfg.RateLimitStore {
		case "redis":
			if limiter, err = ratelimit.NewRedisLimiter(rdb, cfg.RateLimitWindow, cfg.RateLimitRequests); err != nil {
				logger.Fatal().Err(err).Msg("create redis rate limiter")
			}
		case "sliding":
			limiter = ratelimit.SlidingWindow{Client: rdb, Prefix: "invoicing:sliding:", Window: cfg.RateLimitWindow, Max: cfg.RateLimitRequests}
		default:
			limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitWindow, cfg.RateLimitRequests)
		}
		logger.Info().Str("store", cfg.RateLimitStore).Int("requests", cfg.RateLimitRequests).Dur("window", cfg.RateLimitWindow).Msg("rate limiting enabled")
	}
	rateLimit := ratelimit.Handler{
		Limiter: limiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	healthHandler := health.Handler{Probes: probes, Timeout: 200 * time.Millisecond}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeadersEnabled,
		EnableHSTS:            cfg.HSTSEnabled,
		HSTSIncludeSubdomains: true,
		NoStorePrefixes:       cfg.SecurityNoStorePrefixes,
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.RequestBodyLimitBytes}.Middleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	if cfg.MetricsEnabled {
		metrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), registry)
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(obs.RoutePatternMiddleware)
		v.Use(rateLimit.Middleware)
		v.Post("/invoice-recipients/{recipientID}/statement", statementHandler.Statement)
		v.Post("/prices/quote", pricingHandler.Quote)
		v.Post("/money/convert", pricingHandler.Convert)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("server draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

// newRedisClient returns nil when the rate limiter keeps its state in memory.
func newRedisClient(cfg *config.Config, tracing bool) (*redis.Client, error) {
	if cfg.RateLimitStore == "memory" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if tracing {
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			return nil, fmt.Errorf("instrument redis: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// engineProbe runs one known aggregation so readiness fails if the arithmetic is broken.
func engineProbe(_ context.Context) error {
	line := pricing.MustPrice("119.00", "EUR", "19", true)
	b, err := booking.New(booking.Params{Main: &line, PaidAmount: decimal.NewFromInt(19), InvoiceRecipientID: 1})
	if err != nil {
		return err
	}
	totals, err := statement.Calculate([]*booking.Booking{b}, 1)
	if err != nil {
		return err
	}
	open, ok := totals.Open()
	if !ok || open.String() != "100.00 EUR" {
		return fmt.Errorf("unexpected open amount %s", open)
	}
	return nil
}
