package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/matchbook/market-engine/internal/config"
	"github.com/matchbook/market-engine/internal/exposure"
	"github.com/matchbook/market-engine/internal/fixture"
	"github.com/matchbook/market-engine/internal/market"
	"github.com/matchbook/market-engine/internal/metrics"
	"github.com/matchbook/market-engine/internal/oracle"
	"github.com/matchbook/market-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.URL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			slog.Error("invalid database url", "err", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.Database.PoolMaxConns)
		pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.URL != "" {
			opt, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Redis.TTL.Duration)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("database url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Oracle gateway ---
	var gateway oracle.Gateway
	var renderer oracle.SourceRenderer
	if cfg.Oracle.Endpoint != "" {
		gateway = oracle.NewClient(cfg.Oracle.Endpoint, cfg.Oracle.APIKey, cfg.Oracle.Timeout.Duration)
		renderer = oracle.NewFetcher(cfg.Oracle.Timeout.Duration)
		slog.Info("oracle gateway configured", "endpoint", cfg.Oracle.Endpoint)
	} else {
		slog.Warn("oracle endpoint not set, odds generation, resolution, and disputes are disabled")
	}

	// --- Exposure limits ---
	var limiter *exposure.Limiter
	if cfg.Limits.MaxStakePerMarket > 0 || cfg.Limits.MaxStakePerLeague > 0 {
		limiter = exposure.NewLimiter(cfg.Limits.MaxStakePerMarket, cfg.Limits.MaxStakePerLeague)
		slog.Info("exposure limits enabled",
			"per_market", cfg.Limits.MaxStakePerMarket,
			"per_league", cfg.Limits.MaxStakePerLeague,
		)
	}

	// --- Fixture catalog ---
	var catalog *fixture.Catalog
	if cfg.Fixtures.CatalogPath != "" {
		catalog, err = fixture.LoadCatalog(cfg.Fixtures.CatalogPath)
		if err != nil {
			slog.Error("fixture catalog load failed", "path", cfg.Fixtures.CatalogPath, "err", err)
			os.Exit(1)
		}
		slog.Info("fixture catalog loaded", "fixtures", len(catalog.All()))
	}

	// --- WebSocket hub ---
	hub := market.NewEventHub()
	go hub.Run()

	// --- Market engine ---
	minOdds, err := decimal.NewFromString(cfg.Market.MinOdds)
	if err != nil {
		slog.Error("invalid min_odds", "err", err)
		os.Exit(1)
	}
	maxOdds, err := decimal.NewFromString(cfg.Market.MaxOdds)
	if err != nil {
		slog.Error("invalid max_odds", "err", err)
		os.Exit(1)
	}

	svc := market.NewService(st, gateway, renderer, limiter, hub, market.Config{
		InitialBalance: cfg.Market.InitialBalance,
		ProtocolFeeBps: cfg.Market.ProtocolFeeBps,
		MinOdds:        minOdds,
		MaxOdds:        maxOdds,
	})
	handler := market.NewHandler(svc, catalog)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	origins := strings.Join(cfg.Server.CORSOrigins, ", ")
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"market-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time market events.
		r.Get("/ws", hub.HandleWS)

		handler.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
		// Resolve and dispute block on oracle consensus, so the write
		// timeout must exceed the oracle timeout.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Oracle.Timeout.Duration + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("market-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down market-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("market-engine stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
