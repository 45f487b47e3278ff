package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nvoronin/stickerwatch/internal/config"
	"github.com/nvoronin/stickerwatch/internal/logger"
	"github.com/nvoronin/stickerwatch/internal/marketdata"
	"github.com/nvoronin/stickerwatch/internal/monitor"
	"github.com/nvoronin/stickerwatch/internal/report"
	"github.com/nvoronin/stickerwatch/internal/storage"
	"github.com/nvoronin/stickerwatch/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Fatal("Failed to create data directory: %v", err)
	}

	// Initialize storage
	watch := storage.NewWatchStore(filepath.Join(cfg.Storage.DataDir, cfg.Storage.WatchFile))
	if err := watch.Load(); err != nil {
		logger.Fatal("Failed to load watched items: %v", err)
	}

	cache := storage.NewSnapshotCache(filepath.Join(cfg.Storage.DataDir, cfg.Storage.CacheFile))
	if err := cache.Load(); err != nil {
		logger.Warn("Failed to load price cache, starting empty: %v", err)
	}

	dedupStore, err := storage.NewDedupStore(filepath.Join(cfg.Storage.DataDir, cfg.Storage.DedupFile))
	if err != nil {
		logger.Fatal("Failed to open notification history: %v", err)
	}
	defer func() {
		if err := dedupStore.Close(); err != nil {
			logger.Error("Failed to close notification history: %v", err)
		}
	}()

	deduper, err := monitor.NewDeduper(dedupStore)
	if err != nil {
		logger.Fatal("Failed to restore notification history: %v", err)
	}

	// Drop state for users removed from the whitelist
	purgeStaleUsers(cfg, watch, deduper)

	// Initialize market data client
	source := marketdata.NewClient(cfg.MarketData.APIBaseURL, cfg.MarketData.Timeout)

	// Initialize Telegram bot
	bot, err := telegram.NewBot(cfg, watch, deduper)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram bot: %v", err)
	}

	loop := monitor.NewLoop(source, deduper, watch, cache, bot, cfg.Monitor.PollInterval, cfg.Monitor.ErrorRetryInterval)
	bot.AttachMonitor(loop)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	// Start Telegram command listener
	bot.Listen(ctx)

	// Start daily report scheduler
	if cfg.Reports.Enabled {
		scheduler := report.NewScheduler(watch, cache, bot, cfg.Reports.DefaultTimezone)
		go scheduler.Run(ctx)
	} else {
		logger.Debug("Daily reports disabled")
	}

	// Start monitoring loop
	if cfg.Monitor.Enabled {
		logger.Info("Starting price monitor (interval: %v, error retry: %v)",
			cfg.Monitor.PollInterval, cfg.Monitor.ErrorRetryInterval)
		loop.Run(ctx)
	} else {
		logger.Info("Price monitor disabled, serving commands only")
		<-ctx.Done()
	}

	logger.Info("Shutdown complete")
}

// purgeStaleUsers removes watched items and notification history belonging
// to users no longer on the whitelist.
func purgeStaleUsers(cfg *config.Config, watch *storage.WatchStore, deduper *monitor.Deduper) {
	for _, userID := range watch.Users() {
		if cfg.IsWhitelisted(userID) {
			continue
		}
		removed, err := watch.PurgeUser(userID)
		if err != nil {
			logger.Error("Failed to purge user %d: %v", userID, err)
			continue
		}
		if removed {
			deduper.PurgeUser(userID)
			logger.Info("Purged state for non-whitelisted user %d", userID)
		}
	}
}
