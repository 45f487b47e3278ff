package monitor

import (
	"math"
	"sync"
	"time"

	"github.com/nvoronin/stickerwatch/internal/logger"
	"github.com/nvoronin/stickerwatch/internal/models"
	"github.com/nvoronin/stickerwatch/internal/storage"
)

const (
	// minPriceDelta is the absolute TON move that re-arms a suppressed
	// notification. A fixed epsilon, not relative to the price.
	minPriceDelta = 0.01

	// notifyCooldown is the minimum gap between repeat notifications at an
	// unchanged price.
	notifyCooldown = 30 * time.Minute
)

// Deduper rate-limits repeated alerts per (user, item, direction) so a
// flapping price does not spam the user every poll cycle.
//
// The in-memory map is authoritative for decisions; every mutation is written
// through to the durable store. A store write failure is logged loudly (it
// risks notification spam after a restart) but never blocks a decision.
type Deduper struct {
	records map[string]models.NotificationRecord
	mu      sync.Mutex

	store *storage.DedupStore
	now   func() time.Time
}

// NewDeduper creates a Deduper backed by store, restoring all persisted
// records.
func NewDeduper(store *storage.DedupStore) (*Deduper, error) {
	records, err := store.All()
	if err != nil {
		return nil, err
	}
	return &Deduper{
		records: records,
		store:   store,
		now:     time.Now,
	}, nil
}

// ShouldNotify reports whether an alert for the given opportunity should be
// sent right now. When it returns true it has already recorded the send, so
// the caller must dispatch the notification.
//
// The first qualifying opportunity for a key always notifies. Afterwards a
// repeat notifies only when the trigger price moved by at least 0.01 TON in
// either direction, or 30 minutes have passed since the last send.
func (d *Deduper) ShouldNotify(userID int64, itemID string, direction models.Direction, triggerPrice float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	key := storage.RecordKey(userID, itemID, direction)

	record, exists := d.records[key]
	if exists {
		priceMoved := math.Abs(triggerPrice-record.LastPrice) >= minPriceDelta
		cooledDown := now.Sub(record.LastSentAt) >= notifyCooldown
		if !priceMoved && !cooledDown {
			return false
		}
		record.LastPrice = triggerPrice
		record.LastSentAt = now
		record.SendCount++
	} else {
		record = models.NotificationRecord{
			LastPrice:  triggerPrice,
			LastSentAt: now,
			SendCount:  1,
		}
	}

	d.records[key] = record
	if err := d.store.Put(key, record); err != nil {
		logger.Error("Failed to persist notification record %s (dedup state may regress on restart): %v", key, err)
	}
	return true
}

// PurgeItem removes the records for both directions of a watched item. Called
// on item deletion so a re-created item with the same names starts fresh.
func (d *Deduper) PurgeItem(userID int64, itemID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, direction := range []models.Direction{models.DirectionBuy, models.DirectionSell} {
		delete(d.records, storage.RecordKey(userID, itemID, direction))
	}
	if _, err := d.store.DeletePrefix(storage.ItemPrefix(userID, itemID)); err != nil {
		logger.Error("Failed to purge notification records for item %s: %v", itemID, err)
	}
}

// PurgeUser removes all of a user's records. Used for whitelist cleanup.
func (d *Deduper) PurgeUser(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := storage.UserPrefix(userID)
	for key := range d.records {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(d.records, key)
		}
	}
	if _, err := d.store.DeletePrefix(prefix); err != nil {
		logger.Error("Failed to purge notification records for user %d: %v", userID, err)
	}
}
