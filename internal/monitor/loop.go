package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nvoronin/stickerwatch/internal/logger"
	"github.com/nvoronin/stickerwatch/internal/models"
	"github.com/nvoronin/stickerwatch/internal/storage"
)

// Source fetches a normalized snapshot of current marketplace listings for
// all tracked sticker packs.
type Source interface {
	FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error)
}

// Notifier dispatches a formatted opportunity alert to one user.
type Notifier interface {
	SendOpportunity(userID int64, item models.WatchedItem, opp models.Opportunity) error
}

// Loop is the recurring price monitor. Each cycle it fetches a snapshot,
// caches it, evaluates every enabled watched item of every user, gates
// detected opportunities through the deduper, and dispatches qualifying
// alerts. A failed fetch is retried indefinitely after a fixed, shorter
// error interval, without backoff growth. A failure while processing one
// item is logged and never aborts the cycle for other users or items.
type Loop struct {
	source   Source
	deduper  *Deduper
	watch    *storage.WatchStore
	cache    *storage.SnapshotCache
	notifier Notifier

	pollInterval       time.Duration
	errorRetryInterval time.Duration
}

// NewLoop creates a price monitor loop.
func NewLoop(
	source Source,
	deduper *Deduper,
	watch *storage.WatchStore,
	cache *storage.SnapshotCache,
	notifier Notifier,
	pollInterval time.Duration,
	errorRetryInterval time.Duration,
) *Loop {
	return &Loop{
		source:             source,
		deduper:            deduper,
		watch:              watch,
		cache:              cache,
		notifier:           notifier,
		pollInterval:       pollInterval,
		errorRetryInterval: errorRetryInterval,
	}
}

// Run executes cycles until ctx is cancelled. The first cycle fires
// immediately on startup rather than waiting one interval.
func (l *Loop) Run(ctx context.Context) {
	logger.Info("Price monitor started (interval: %v, error retry: %v)", l.pollInterval, l.errorRetryInterval)

	for {
		interval := l.pollInterval
		if err := l.Cycle(ctx); err != nil {
			logger.Error("Price check cycle failed: %v", err)
			interval = l.errorRetryInterval
		}

		select {
		case <-ctx.Done():
			logger.Info("Price monitor stopped")
			return
		case <-time.After(interval):
		}
	}
}

// Cycle runs one complete check: fetch, cache, evaluate, dedup, dispatch.
// It returns an error only when the snapshot fetch fails; per-item problems
// are logged and skipped.
func (l *Loop) Cycle(ctx context.Context) error {
	startTime := time.Now()
	logger.Info("Price check cycle started")

	snapshot, err := l.source.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	// Latest good snapshot feeds manual checks and daily reports. A write
	// failure must not abort the cycle.
	if err := l.cache.Put(snapshot); err != nil {
		logger.Error("Failed to persist snapshot cache: %v", err)
	}

	users := l.watch.Users()
	checked := 0
	for _, userID := range users {
		for itemID, item := range l.watch.Items(userID) {
			if !item.Enabled {
				continue
			}
			checked++
			l.checkItem(userID, itemID, item, snapshot)
		}
	}

	logger.Info("Price check completed: %d bundles, %d items checked across %d users in %v",
		len(snapshot.Bundles), checked, len(users), time.Since(startTime))
	return nil
}

func (l *Loop) checkItem(userID int64, itemID string, item models.WatchedItem, snapshot *models.MarketSnapshot) {
	listings, found := snapshot.Find(item.CollectionName, item.StickerpackName)
	if !found {
		logger.Debug("Pack not in snapshot: %s / %s (user %d)", item.CollectionName, item.StickerpackName, userID)
		return
	}

	for _, opp := range Evaluate(item, listings) {
		if !l.deduper.ShouldNotify(userID, itemID, opp.Direction, opp.TriggerPrice) {
			logger.Debug("Suppressed %s alert for %s / %s (user %d, price %.2f)",
				opp.Direction, item.CollectionName, item.StickerpackName, userID, opp.TriggerPrice)
			continue
		}
		if err := l.notifier.SendOpportunity(userID, item, opp); err != nil {
			logger.Error("Failed to send %s alert to user %d for %s / %s: %v",
				opp.Direction, userID, item.CollectionName, item.StickerpackName, err)
			continue
		}
		logger.Info("Sent %s alert to user %d for %s / %s at %.2f TON",
			opp.Direction, userID, item.CollectionName, item.StickerpackName, opp.TriggerPrice)
	}
}

// ItemStatus is the result of a manual check for one watched item.
type ItemStatus struct {
	Item          models.WatchedItem
	Found         bool
	LowestPrice   float64
	Opportunities []models.Opportunity
}

// ManualCheck immediately fetches prices for one user's items and returns
// their current status. It intentionally bypasses the deduper: a manual check
// always shows full current data, never suppressed, and never mutates
// notification records. When the fetch fails, the last cached snapshot is
// used instead.
func (l *Loop) ManualCheck(ctx context.Context, userID int64) ([]ItemStatus, error) {
	items := l.watch.Items(userID)
	if len(items) == 0 {
		return nil, nil
	}

	snapshot, err := l.source.FetchSnapshot(ctx)
	if err != nil {
		logger.Warn("Manual check fetch failed for user %d, falling back to cache: %v", userID, err)
		cached, ok := l.cache.Latest()
		if !ok {
			return nil, fmt.Errorf("fetch snapshot: %w", err)
		}
		snapshot = cached
	} else if cacheErr := l.cache.Put(snapshot); cacheErr != nil {
		logger.Error("Failed to persist snapshot cache: %v", cacheErr)
	}

	statuses := make([]ItemStatus, 0, len(items))
	for _, item := range items {
		status := ItemStatus{Item: item}
		if listings, found := snapshot.Find(item.CollectionName, item.StickerpackName); found {
			status.Found = true
			status.LowestPrice = listings[0].Price
			for _, l := range listings[1:] {
				if l.Price < status.LowestPrice {
					status.LowestPrice = l.Price
				}
			}
			status.Opportunities = Evaluate(item, listings)
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		a, b := statuses[i].Item, statuses[j].Item
		if a.CollectionName != b.CollectionName {
			return a.CollectionName < b.CollectionName
		}
		return a.StickerpackName < b.StickerpackName
	})
	return statuses, nil
}
