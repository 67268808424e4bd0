package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/better-wallet/walletd/internal/api"
	"github.com/better-wallet/walletd/internal/balance"
	"github.com/better-wallet/walletd/internal/config"
	"github.com/better-wallet/walletd/internal/eth"
	"github.com/better-wallet/walletd/internal/logger"
	"github.com/better-wallet/walletd/internal/metrics"
	"github.com/better-wallet/walletd/internal/middleware"
	"github.com/better-wallet/walletd/internal/provider"
	"github.com/better-wallet/walletd/internal/session"
	"github.com/better-wallet/walletd/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	walletMetrics := metrics.New(registry)

	// Wallet provider. Its absence is expected; every operation then reports
	// provider_unavailable until the daemon is restarted with a reachable one.
	var p provider.Provider
	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	client, err := eth.NewClient(dialCtx, cfg.ProviderURL, cfg.EventPollInterval)
	cancelDial()
	if err != nil {
		slog.Warn("wallet provider unavailable", "url", cfg.ProviderURL, "error", err)
	} else {
		defer client.Close()
		p = client
		go client.Watch(ctx)
		slog.Info("connected to wallet provider", "url", cfg.ProviderURL)
	}

	adapter := provider.NewAdapter(p, cfg.ReceiptPollInterval)
	synchronizer := balance.NewSynchronizer(adapter, common.HexToAddress(cfg.TokenAddress), walletMetrics)
	manager := session.NewManager(adapter, synchronizer, session.Options{
		ExpectedNetworkID:   cfg.ExpectedChain(),
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		Metrics:             walletMetrics,
		OnReset: func() {
			slog.Warn("wallet network changed, session was reset")
		},
	})
	defer manager.Close()

	if err := manager.Start(ctx); err != nil {
		slog.Warn("startup probe failed, session stays disconnected", "error", err)
	}

	// Optional transfer journal
	var journal api.TransferJournal
	if cfg.PostgresDSN != "" {
		store, err := storage.New(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		journal = storage.NewTransferRepository(store.DB())
		slog.Info("connected to database")
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled)
	go rateLimiter.Run(ctx)

	server := api.NewServer(cfg, manager, journal, rateLimiter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}

		slog.Info("server stopped")
	}
}
