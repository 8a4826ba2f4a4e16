package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richgang/indice-killer/internal/config"
	"github.com/richgang/indice-killer/internal/engine"
	"github.com/richgang/indice-killer/internal/market"
	"github.com/richgang/indice-killer/internal/pubsub"
	"github.com/richgang/indice-killer/internal/session"
	"github.com/richgang/indice-killer/internal/wsgateway"
	"github.com/richgang/indice-killer/pkg/logger"
)

// The standalone gateway scales out real-time delivery. It relays new
// signals published by API replicas over Redis and runs its own market feed
// from the shared quote tier; it never generates signals.
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

	logger.Info("Starting WebSocket gateway service",
		logger.Int("port", cfg.WSGateway.Port),
		logger.Int("max_connections", cfg.WSGateway.MaxConnections),
		logger.String("channel", cfg.Redis.BroadcastChannel),
	)

	if !cfg.Redis.Enabled {
		logger.Fatal("The WebSocket gateway requires REDIS_ENABLED")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis client
	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client",
			logger.ErrorField(err),
		)
	}
	defer redisClient.Close()

	// Initialize auth manager
	authManager := wsgateway.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)

	// Initialize hub
	hub := wsgateway.NewHub(cfg.WSGateway)
	if err := hub.Start(); err != nil {
		logger.Fatal("Failed to start WebSocket hub",
			logger.ErrorField(err),
		)
	}
	defer hub.Stop()

	// Forward new signals from API replicas
	relay := pubsub.NewRelay(redisClient, cfg.Redis.BroadcastChannel)
	go func() {
		if err := relay.Run(ctx, hub); err != nil {
			logger.Error("Broadcast relay stopped", logger.ErrorField(err))
		}
	}()

	// Market updates come from the same cache tier the API replicas fill
	calendar := session.NewCalendar(nil)
	chain := market.NewChain(calendar, cfg.MarketData.RequestTimeout,
		market.NewSynthetic(nil, nil),
		market.ProvidersFromConfig(cfg.MarketData)...,
	)
	quotes := market.NewQuoteCache(chain, redisClient, nil)
	feed := engine.NewFeed(engine.NewMarkets(quotes, cfg.MarketData.Symbols), hub, cfg.Feed.Interval)
	if err := feed.Start(); err != nil {
		logger.Fatal("Failed to start market feed",
			logger.ErrorField(err),
		)
	}
	defer feed.Stop()

	// Set up HTTP server
	router := mux.NewRouter()

	// WebSocket endpoint
	router.Handle("/ws", wsgateway.NewHandler(hub, authManager))

	// Health check endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer pingCancel()
		if err := redisClient.Ping(pingCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})

	// Stats endpoint
	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.GetStats())
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Start HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSGateway.Port),
		Handler:           router,
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
	logger.Info("Shutting down WebSocket gateway service")

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server",
			logger.ErrorField(err),
		)
	}
	cancel()

	logger.Info("WebSocket gateway service stopped")
}
