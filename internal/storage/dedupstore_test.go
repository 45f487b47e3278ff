package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nvoronin/stickerwatch/internal/models"
)

func mustDedupStore(t *testing.T, path string) *DedupStore {
	t.Helper()
	s, err := NewDedupStore(path)
	if err != nil {
		t.Fatalf("failed to create dedup store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordKey(t *testing.T) {
	key := RecordKey(123, "item-1", models.DirectionBuy)
	if key != "123:item-1:buy" {
		t.Errorf("Expected key 123:item-1:buy, got %s", key)
	}
	if got := ItemPrefix(123, "item-1"); got != "123:item-1:" {
		t.Errorf("Expected prefix 123:item-1:, got %s", got)
	}
	if got := UserPrefix(123); got != "123:" {
		t.Errorf("Expected prefix 123:, got %s", got)
	}
}

func TestDedupStorePutAndGet(t *testing.T) {
	s := mustDedupStore(t, ":memory:")

	key := RecordKey(123, "item-1", models.DirectionBuy)
	record := models.NotificationRecord{
		LastPrice:  19.5,
		LastSentAt: time.Now().Truncate(time.Second),
		SendCount:  1,
	}

	if err := s.Put(key, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected record to exist")
	}
	if got.LastPrice != 19.5 || got.SendCount != 1 {
		t.Errorf("Unexpected record: %+v", got)
	}
	if !got.LastSentAt.Equal(record.LastSentAt) {
		t.Errorf("Expected sent time %v, got %v", record.LastSentAt, got.LastSentAt)
	}
}

func TestDedupStoreGetMissing(t *testing.T) {
	s := mustDedupStore(t, ":memory:")

	_, found, err := s.Get("123:item-1:buy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected no record")
	}
}

func TestDedupStoreRejectsInvalidRecord(t *testing.T) {
	s := mustDedupStore(t, ":memory:")

	bad := models.NotificationRecord{LastPrice: 0, LastSentAt: time.Now(), SendCount: 1}
	if err := s.Put("123:item-1:buy", bad); err == nil {
		t.Error("expected error for zero last price")
	}
}

func TestDedupStoreDeletePrefix(t *testing.T) {
	s := mustDedupStore(t, ":memory:")

	record := models.NotificationRecord{LastPrice: 19.5, LastSentAt: time.Now(), SendCount: 1}
	keys := []string{
		RecordKey(123, "item-1", models.DirectionBuy),
		RecordKey(123, "item-1", models.DirectionSell),
		RecordKey(123, "item-2", models.DirectionBuy),
		RecordKey(456, "item-1", models.DirectionBuy),
	}
	for _, key := range keys {
		if err := s.Put(key, record); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	// Deleting one item removes both its directions, nothing else.
	removed, err := s.DeletePrefix(ItemPrefix(123, "item-1"))
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 records removed, got %d", removed)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 records remaining, got %d", len(all))
	}
	if _, ok := all[RecordKey(123, "item-2", models.DirectionBuy)]; !ok {
		t.Error("expected item-2 record to survive")
	}
	if _, ok := all[RecordKey(456, "item-1", models.DirectionBuy)]; !ok {
		t.Error("expected other user's record to survive")
	}
}

func TestDedupStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.db")

	s, err := NewDedupStore(path)
	if err != nil {
		t.Fatalf("failed to create dedup store: %v", err)
	}
	key := RecordKey(123, "item-1", models.DirectionSell)
	record := models.NotificationRecord{LastPrice: 31, LastSentAt: time.Now().Truncate(time.Second), SendCount: 3}
	if err := s.Put(key, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	restored := mustDedupStore(t, path)
	got, found, err := restored.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected record to survive restart")
	}
	if got.SendCount != 3 {
		t.Errorf("Expected send count 3, got %d", got.SendCount)
	}
}
