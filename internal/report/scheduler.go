// Package report sends users a daily summary of their watched sticker packs
// with the latest known marketplace prices.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nvoronin/stickerwatch/internal/logger"
	"github.com/nvoronin/stickerwatch/internal/models"
	"github.com/nvoronin/stickerwatch/internal/storage"
)

// Hours at which each time preference fires, in the user's timezone.
var preferenceHours = map[string]int{
	"morning":   9,
	"afternoon": 14,
	"evening":   19,
}

// Sender delivers a report message to a user.
type Sender interface {
	SendReport(userID int64, text string) error
}

// Scheduler checks once a minute whether any user is due a daily report and
// sends at most one per user per day.
type Scheduler struct {
	watch           *storage.WatchStore
	cache           *storage.SnapshotCache
	sender          Sender
	defaultTimezone string

	// lastSent maps userID to the local date (YYYY-MM-DD) of the last
	// report, so a restart within the same hour cannot double-send within
	// the process lifetime.
	lastSent map[int64]string

	checkInterval time.Duration
	now           func() time.Time
}

func NewScheduler(watch *storage.WatchStore, cache *storage.SnapshotCache, sender Sender, defaultTimezone string) *Scheduler {
	return &Scheduler{
		watch:           watch,
		cache:           cache,
		sender:          sender,
		defaultTimezone: defaultTimezone,
		lastSent:        make(map[int64]string),
		checkInterval:   time.Minute,
		now:             time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("Report scheduler started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Report scheduler stopped")
			return
		case <-time.After(s.checkInterval):
			s.Tick()
		}
	}
}

// Tick sends reports to every user whose preferred hour has arrived.
func (s *Scheduler) Tick() {
	for _, userID := range s.watch.Users() {
		prefs, ok := s.watch.ReportPrefs(userID)
		if !ok || !prefs.Enabled {
			continue
		}

		hour, known := preferenceHours[prefs.TimePreference]
		if !known {
			logger.Warn("User %d has unknown report time preference %q, skipping", userID, prefs.TimePreference)
			continue
		}

		loc := s.location(prefs.Timezone)
		local := s.now().In(loc)
		if local.Hour() != hour {
			continue
		}

		day := local.Format("2006-01-02")
		if s.lastSent[userID] == day {
			continue
		}

		if err := s.sender.SendReport(userID, s.buildReport(userID)); err != nil {
			logger.Error("Failed to send daily report to user %d: %v", userID, err)
			continue
		}
		s.lastSent[userID] = day
		logger.Info("Sent daily report to user %d", userID)
	}
}

func (s *Scheduler) location(tz string) *time.Location {
	if tz == "" {
		tz = s.defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logger.Warn("Unknown timezone %q, falling back to UTC", tz)
		return time.UTC
	}
	return loc
}

// buildReport renders one user's watched packs with the latest cached prices.
func (s *Scheduler) buildReport(userID int64) string {
	itemMap := s.watch.Items(userID)
	items := make([]models.WatchedItem, 0, len(itemMap))
	for _, item := range itemMap {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CollectionName != items[j].CollectionName {
			return items[i].CollectionName < items[j].CollectionName
		}
		return items[i].StickerpackName < items[j].StickerpackName
	})

	var b strings.Builder
	b.WriteString("📊 Daily sticker pack report\n\n")

	if len(items) == 0 {
		b.WriteString("You are not watching any sticker packs. Use /add to start.")
		return b.String()
	}

	snapshot, haveSnapshot := s.cache.Latest()
	for _, item := range items {
		fmt.Fprintf(&b, "📦 %s / %s\n", item.CollectionName, item.StickerpackName)

		if !item.Enabled {
			b.WriteString("   Alerts paused\n")
		}

		var listings []models.Listing
		found := false
		if haveSnapshot {
			listings, found = snapshot.Find(item.CollectionName, item.StickerpackName)
		}
		if !found || len(listings) == 0 {
			b.WriteString("   No market data\n")
			continue
		}

		lowest := listings[0].Price
		for _, l := range listings[1:] {
			if l.Price < lowest {
				lowest = l.Price
			}
		}
		fmt.Fprintf(&b, "   Lowest: %.2f TON (buy ≤ %.2f, sell ≥ %.2f)\n",
			lowest, item.BuyThreshold(), item.SellThreshold())
	}

	if haveSnapshot {
		fmt.Fprintf(&b, "\nPrices as of %s UTC", snapshot.FetchedAt.UTC().Format("15:04"))
	}
	return b.String()
}
