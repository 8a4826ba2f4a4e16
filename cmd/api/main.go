package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richgang/indice-killer/internal/api"
	"github.com/richgang/indice-killer/internal/config"
	"github.com/richgang/indice-killer/internal/engine"
	"github.com/richgang/indice-killer/internal/history"
	"github.com/richgang/indice-killer/internal/market"
	"github.com/richgang/indice-killer/internal/pubsub"
	"github.com/richgang/indice-killer/internal/session"
	sig "github.com/richgang/indice-killer/internal/signal"
	"github.com/richgang/indice-killer/internal/storage"
	"github.com/richgang/indice-killer/internal/wsgateway"
	"github.com/richgang/indice-killer/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting signal service",
		logger.Int("port", cfg.API.Port),
		logger.Bool("database", cfg.Database.Enabled),
		logger.Bool("redis", cfg.Redis.Enabled),
		logger.Duration("feed_interval", cfg.Feed.Interval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session calendar
	calendar := session.NewCalendar(nil)
	overrides, err := session.ParseOverrides(cfg.Sessions.Overrides)
	if err != nil {
		logger.Fatal("Invalid session overrides", logger.ErrorField(err))
	}
	calendar.WithWindows(overrides)

	// Optional Redis: shared quote tier, direction mirror, broadcast relay
	var redisClient *pubsub.RedisClientImpl
	if cfg.Redis.Enabled {
		redisClient, err = pubsub.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize Redis client", logger.ErrorField(err))
		}
		defer redisClient.Close()
	}

	// Storage: Postgres when enabled, otherwise in memory
	var (
		signalStore    storage.SignalStorage
		directionStore storage.DirectionStorage
		readiness      = map[string]pinger{}
	)
	if cfg.Database.Enabled {
		pg, err := storage.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize signal storage", logger.ErrorField(err))
		}
		defer pg.Close()
		signalStore, directionStore = pg, pg
		readiness["postgres"] = pg
	} else {
		logger.Warn("Database disabled, signals are kept in memory")
		mem := storage.NewMemoryStore()
		signalStore, directionStore = mem, mem
	}
	if redisClient != nil {
		directionStore = storage.NewDirectionMirror(directionStore, redisClient)
		readiness["redis"] = redisClient
	}

	// Quote resolution
	chain := market.NewChain(calendar, cfg.MarketData.RequestTimeout,
		market.NewSynthetic(nil, nil),
		market.ProvidersFromConfig(cfg.MarketData)...,
	)
	var shared market.SharedTier
	if redisClient != nil {
		shared = redisClient
	}
	quotes := market.NewQuoteCache(chain, shared, nil)
	logger.Info("Quote providers configured",
		logger.Any("providers", chain.Providers()),
	)

	// Signal generation
	generator := sig.NewGenerator(sig.Config{
		MinConfidence:     cfg.Signal.MinConfidence,
		PendingConfidence: cfg.Signal.PendingConfidence,
		PendingDraw:       cfg.Signal.PendingDraw,
	}, calendar, sig.NewAnalyzer(sig.DefaultSeed, calendar.Now), sig.NewDirectionMachine())

	// Real-time fan-out
	hub := wsgateway.NewHub(cfg.WSGateway)
	if err := hub.Start(); err != nil {
		logger.Fatal("Failed to start WebSocket hub", logger.ErrorField(err))
	}
	defer hub.Stop()

	broadcasters := engine.Fanout{hub}
	if redisClient != nil {
		relay := pubsub.NewRelay(redisClient, cfg.Redis.BroadcastChannel)
		broadcasters = append(broadcasters, relay)
		go func() {
			if err := relay.Run(ctx, hub); err != nil {
				logger.Error("Broadcast relay stopped", logger.ErrorField(err))
			}
		}()
	}

	service := engine.NewService(quotes, generator, signalStore, directionStore, broadcasters, cfg.MarketData.Symbols)
	if err := service.Restore(ctx); err != nil {
		logger.Warn("Starting with a NEUTRAL direction", logger.ErrorField(err))
	}

	// The feed reaches only this replica's clients; every replica runs its own.
	feed := engine.NewFeed(service, hub, cfg.Feed.Interval)
	if err := feed.Start(); err != nil {
		logger.Fatal("Failed to start market feed", logger.ErrorField(err))
	}
	defer feed.Stop()

	// HTTP surface
	auth := wsgateway.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	if !auth.Enabled() {
		logger.Warn("JWT_SECRET not set, all callers are anonymous clients")
	}

	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(api.LoggingMiddleware()))

	handler := api.NewHandler(service, calendar, history.NewBuilder(rand.New(rand.NewSource(time.Now().UnixNano())), calendar.Now))
	handler.RegisterRoutes(router, auth)

	router.Handle("/ws", wsgateway.NewHandler(hub, auth))

	// Health check endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         "healthy",
			"ws_connections": hub.ConnectionCount(),
		})
	})

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer pingCancel()

		w.Header().Set("Content-Type", "application/json")
		for name, p := range readiness {
			if err := p.Ping(pingCtx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "dependency": name})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Apply middleware
	middlewares := api.ChainMiddleware(
		api.CORSMiddleware(cfg.API.CORSOrigins),
		api.RequestIDMiddleware(),
		api.ErrorHandlingMiddleware(),
		api.RateLimitMiddleware(cfg.API.RateLimitRPS),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           middlewares(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server",
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server",
				logger.ErrorField(err),
			)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down signal service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server",
			logger.ErrorField(err),
		)
	}
	cancel()

	logger.Info("Signal service stopped")
}
