// gridbot runs an automated sliding-window grid market maker around the
// mid-price of a perpetual futures contract on a Starknet-based venue.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires the pool/store/registry, waits for SIGINT/SIGTERM
//	internal/venue/adapter.go — Venue Adapter: two executor loops (API, order book) per account
//	internal/managers         — Manager Triplet: order/account/position bookkeeping per account
//	internal/pool/pool.go     — Instance Pool: account_key -> (adapter, triplet) registry
//	internal/grid             — Strategy Core + Strategy Registry: the grid algorithm and its lifecycle
//	internal/store/store.go   — Config Store: JSON file persistence for venue credentials
//	internal/httpapi          — thin net/http surface exposing the above to external callers
//
// How it makes money:
//
//	The bot posts a ladder of resting limit orders on both sides of the
//	mid-price, capturing the spread as each level fills. As inventory
//	accumulates on one side, the ratio of buy/sell orders skews to reduce
//	further exposure in that direction, capping out entirely once the
//	position reaches a configured multiple of the order size.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gridbot/internal/config"
	"gridbot/internal/grid"
	"gridbot/internal/httpapi"
	"gridbot/internal/pool"
	"gridbot/internal/store"
	"gridbot/internal/venue"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("GRID_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	cfgStore, err := store.Open(cfg.Store.ConfigPath)
	if err != nil {
		logger.Error("failed to open config store", "error", err)
		os.Exit(1)
	}

	venueCfg := venue.Config{RESTBaseURL: cfg.Venue.RESTBaseURL, WSBookURL: cfg.Venue.WSBookURL}
	instancePool := pool.New(venueCfg, cfgStore, logger)
	registry := grid.NewRegistry(logger)

	var apiServer *httpapi.Server
	if cfg.Dashboard.Enabled {
		apiServer = httpapi.NewServer(cfg.Dashboard, instancePool, cfgStore, registry, cfg.Strategy, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("http api failed", "error", err)
			}
		}()
		logger.Info("http api started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("gridbot started",
		"venue", cfg.Venue.RESTBaseURL,
		"total_orders", cfg.Strategy.TotalOrders,
		"update_interval", cfg.Strategy.UpdateInterval,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop http api", "error", err)
		}
	}

	instancePool.Clear()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
