package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"contapyme/internal/domain/audit"
	"contapyme/internal/domain/coherence"
	"contapyme/internal/domain/company"
	"contapyme/internal/domain/payroll"
	"contapyme/internal/platform/config"
	"contapyme/internal/platform/db"
	"contapyme/internal/platform/email"
	"contapyme/internal/platform/jobs"
	"contapyme/internal/platform/metrics"
	"contapyme/internal/transport/http/api"
	audithandler "contapyme/internal/transport/http/handlers/audit"
	coherencehandler "contapyme/internal/transport/http/handlers/coherence"
	companyhandler "contapyme/internal/transport/http/handlers/company"
	payrollhandler "contapyme/internal/transport/http/handlers/payroll"
	"contapyme/internal/transport/http/middleware"
)

type Handlers struct {
	Payroll   *payrollhandler.Handler
	Coherence *coherencehandler.Handler
	Company   *companyhandler.Handler
	Audit     *audithandler.Handler
}

// ReadyFunc reports whether the backing stores answer.
type ReadyFunc func(ctx context.Context) error

func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func Thresholds(cfg config.Config) coherence.Thresholds {
	return coherence.Thresholds{
		Tolerance: cfg.CoherenceTolerance,
		Medium:    cfg.CoherenceMediumThreshold,
		High:      cfg.CoherenceHighThreshold,
		Critical:  cfg.CoherenceCriticalThreshold,
	}
}

func NewRouter(cfg config.Config, logger *slog.Logger, collector *metrics.Collector, ready ReadyFunc, h Handlers) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Actor)
	router.Use(middleware.Logger(logger, collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if ready != nil {
			if err := ready(ctx); err != nil {
				logger.Warn("readiness check failed", "err", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		h.Company.RegisterRoutes(r)
		r.Route("/companies/{companyID}", func(r chi.Router) {
			h.Audit.RegisterRoutes(r)
			r.Route("/periods/{year}/{month}", func(r chi.Router) {
				h.Payroll.RegisterRoutes(r)
				h.Coherence.RegisterRoutes(r)
			})
		})
	})

	return router
}

func Run() {
	cfg := config.Load()
	logger := NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg.SeedCompanyID, time.Now().UTC()); err != nil {
			logger.Error("seed failed", "err", err)
			os.Exit(1)
		}
	}

	var cache company.Cache = company.NewMemoryCache(cfg.ResolverCacheTTL)
	ready := ReadyFunc(pool.Ping)
	if cfg.RedisAddr != "" {
		rdb, err := db.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		cache = company.NewRedisCache(rdb, company.DefaultRedisPrefix, cfg.ResolverCacheTTL)
		ready = func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		}
	}

	collector := metrics.New()
	store := payroll.NewStore(pool)
	engine := coherence.NewEngine(Thresholds(cfg))
	coherenceService := coherence.NewService(store, engine)
	resolver := company.NewResolver(store, cache, cfg.ResolverFallbackIDs, logger)
	auditService := audit.New(pool)

	jobService := jobs.New(jobs.PGRunStore{DB: pool}, coherenceService, store, collector, cfg.CoherenceAuditInterval).
		WithAlerts(email.New(cfg), cfg.AlertEmailFrom, cfg.AlertEmailTo)
	jobService.Start(ctx)

	coherenceHandler := coherencehandler.NewHandler(coherenceService, resolver, jobService, auditService, collector).
		WithIdempotency(middleware.NewIdempotencyStore(pool))
	router := NewRouter(cfg, logger, collector, ready, Handlers{
		Payroll:   payrollhandler.NewHandler(payroll.NewService(store), resolver, cfg.CoherenceTolerance),
		Coherence: coherenceHandler,
		Company:   companyhandler.NewHandler(resolver, auditService),
		Audit:     audithandler.NewHandler(auditService),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "err", err)
	}
}
