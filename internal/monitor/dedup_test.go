package monitor

import (
	"testing"
	"time"

	"github.com/nvoronin/stickerwatch/internal/models"
	"github.com/nvoronin/stickerwatch/internal/storage"
)

func mustDeduper(t *testing.T) (*Deduper, *time.Time) {
	t.Helper()
	store, err := storage.NewDedupStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create dedup store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	d, err := NewDeduper(store)
	if err != nil {
		t.Fatalf("failed to create deduper: %v", err)
	}

	now := time.Now()
	d.now = func() time.Time { return now }
	return d, &now
}

func TestShouldNotifyFirstTime(t *testing.T) {
	d, _ := mustDeduper(t)

	if !d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected first notification to pass")
	}
}

func TestShouldNotifyIdempotence(t *testing.T) {
	d, _ := mustDeduper(t)

	if !d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Fatal("expected first call to return true")
	}
	// Same price, no time elapsed: suppressed.
	if d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected immediate repeat to be suppressed")
	}
}

func TestShouldNotifyReactivatesAfterCooldown(t *testing.T) {
	d, now := mustDeduper(t)

	d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0)
	if d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Fatal("expected repeat to be suppressed")
	}

	*now = now.Add(29 * time.Minute)
	if d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected suppression at 29 minutes")
	}

	*now = now.Add(time.Minute) // exactly 30 minutes since last send
	if !d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected reactivation at the 30-minute boundary")
	}
}

func TestShouldNotifyReactivatesOnPriceMove(t *testing.T) {
	d, _ := mustDeduper(t)

	d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0)

	tests := []struct {
		name  string
		price float64
		want  bool
	}{
		{"move below epsilon suppressed", 19.005, false},
		{"move of exactly 0.01 up notifies", 19.01, true},
		{"unchanged after update suppressed", 19.01, false},
		{"move of 0.01 down notifies", 19.0, true},
		{"tiny move down suppressed", 18.995, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.ShouldNotify(100, "item-1", models.DirectionBuy, tt.price); got != tt.want {
				t.Errorf("ShouldNotify(%v) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestShouldNotifyDirectionsIndependent(t *testing.T) {
	d, _ := mustDeduper(t)

	if !d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Fatal("expected buy to pass")
	}
	// A buy record never gates the sell direction.
	if !d.ShouldNotify(100, "item-1", models.DirectionSell, 31.0) {
		t.Error("expected sell to pass independently of buy record")
	}
	if d.ShouldNotify(100, "item-1", models.DirectionSell, 31.0) {
		t.Error("expected sell repeat to be suppressed")
	}
}

func TestShouldNotifyUsersIndependent(t *testing.T) {
	d, _ := mustDeduper(t)

	d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0)
	if !d.ShouldNotify(200, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected separate user to get their own first notification")
	}
}

func TestShouldNotifyUpdatesRecord(t *testing.T) {
	d, now := mustDeduper(t)

	d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0)
	*now = now.Add(notifyCooldown)
	d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0)

	record, found, err := d.store.Get(storage.RecordKey(100, "item-1", models.DirectionBuy))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected persisted record")
	}
	if record.SendCount != 2 {
		t.Errorf("Expected send count 2, got %d", record.SendCount)
	}
	if record.LastPrice != 19.0 {
		t.Errorf("Expected last price 19.0, got %v", record.LastPrice)
	}
}

func TestPurgeItemResetsBothDirections(t *testing.T) {
	d, _ := mustDeduper(t)

	d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0)
	d.ShouldNotify(100, "item-1", models.DirectionSell, 31.0)
	d.ShouldNotify(100, "item-2", models.DirectionBuy, 5.0)

	d.PurgeItem(100, "item-1")

	// Re-created item with the same id starts fresh in both directions.
	if !d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected buy to notify after purge")
	}
	if !d.ShouldNotify(100, "item-1", models.DirectionSell, 31.0) {
		t.Error("expected sell to notify after purge")
	}
	// Unrelated item unaffected.
	if d.ShouldNotify(100, "item-2", models.DirectionBuy, 5.0) {
		t.Error("expected item-2 record to survive the purge")
	}
}

func TestPurgeUser(t *testing.T) {
	d, _ := mustDeduper(t)

	d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0)
	d.ShouldNotify(200, "item-1", models.DirectionBuy, 19.0)

	d.PurgeUser(100)

	if !d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected purged user to start fresh")
	}
	if d.ShouldNotify(200, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected other user's record to survive")
	}
}

func TestDeduperRestoresPersistedState(t *testing.T) {
	store, err := storage.NewDedupStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create dedup store: %v", err)
	}
	defer store.Close()

	now := time.Now()
	record := models.NotificationRecord{LastPrice: 19.0, LastSentAt: now, SendCount: 1}
	if err := store.Put(storage.RecordKey(100, "item-1", models.DirectionBuy), record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	d, err := NewDeduper(store)
	if err != nil {
		t.Fatalf("failed to create deduper: %v", err)
	}
	d.now = func() time.Time { return now }

	// The restored record must suppress an unchanged repeat.
	if d.ShouldNotify(100, "item-1", models.DirectionBuy, 19.0) {
		t.Error("expected restored record to suppress repeat")
	}
}
