package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nvoronin/stickerwatch/internal/models"
)

func testItem(id string) models.WatchedItem {
	return models.WatchedItem{
		ID:              id,
		CollectionName:  "Notcoin",
		StickerpackName: "Gold Pack",
		LaunchPrice:     10,
		BuyMultiplier:   2.0,
		SellMultiplier:  3.0,
		Enabled:         true,
		CreatedAt:       time.Now(),
	}
}

func TestWatchStoreAddAndGet(t *testing.T) {
	s := NewWatchStore(filepath.Join(t.TempDir(), "watch.json"))

	if err := s.AddItem(100, testItem("item-1")); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	item, found := s.GetItem(100, "item-1")
	if !found {
		t.Fatal("expected item-1 to exist")
	}
	if item.CollectionName != "Notcoin" {
		t.Errorf("Expected collection Notcoin, got %s", item.CollectionName)
	}

	if _, found := s.GetItem(100, "missing"); found {
		t.Error("expected missing item to not be found")
	}
	if _, found := s.GetItem(200, "item-1"); found {
		t.Error("expected other user's lookup to fail")
	}
}

func TestWatchStoreRejectsInvalidItem(t *testing.T) {
	s := NewWatchStore(filepath.Join(t.TempDir(), "watch.json"))

	bad := testItem("item-1")
	bad.LaunchPrice = 0
	if err := s.AddItem(100, bad); err == nil {
		t.Error("expected error for non-positive launch price")
	}

	negative := testItem("item-2")
	negative.BuyMultiplier = -2
	if err := s.AddItem(100, negative); err == nil {
		t.Error("expected error for negative buy multiplier")
	}
}

func TestWatchStoreUpdate(t *testing.T) {
	s := NewWatchStore(filepath.Join(t.TempDir(), "watch.json"))

	if err := s.AddItem(100, testItem("item-1")); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	updated := testItem("item-1")
	updated.BuyMultiplier = 1.5
	if err := s.UpdateItem(100, updated); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	item, _ := s.GetItem(100, "item-1")
	if item.BuyMultiplier != 1.5 {
		t.Errorf("Expected buy multiplier 1.5, got %v", item.BuyMultiplier)
	}

	if err := s.UpdateItem(100, testItem("missing")); err == nil {
		t.Error("expected error updating unknown item")
	}
}

func TestWatchStoreDelete(t *testing.T) {
	s := NewWatchStore(filepath.Join(t.TempDir(), "watch.json"))

	if err := s.AddItem(100, testItem("item-1")); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	removed, found, err := s.DeleteItem(100, "item-1")
	if err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if !found {
		t.Fatal("expected item-1 to be removed")
	}
	if removed.ID != "item-1" {
		t.Errorf("Expected removed item item-1, got %s", removed.ID)
	}

	if _, found, _ := s.DeleteItem(100, "item-1"); found {
		t.Error("expected second delete to report not found")
	}
}

func TestWatchStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.json")

	s := NewWatchStore(path)
	if err := s.AddItem(100, testItem("item-1")); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := s.SetReportPrefs(100, models.ReportPrefs{Enabled: true, TimePreference: "morning", Timezone: "Europe/Moscow"}); err != nil {
		t.Fatalf("SetReportPrefs failed: %v", err)
	}

	restored := NewWatchStore(path)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, found := restored.GetItem(100, "item-1"); !found {
		t.Error("expected item-1 to survive restart")
	}
	prefs, found := restored.ReportPrefs(100)
	if !found || !prefs.Enabled || prefs.Timezone != "Europe/Moscow" {
		t.Errorf("Expected report prefs to survive restart, got %+v (found=%v)", prefs, found)
	}
}

func TestWatchStoreLoadMissingFile(t *testing.T) {
	s := NewWatchStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load of missing file should start fresh, got %v", err)
	}
	if len(s.Users()) != 0 {
		t.Error("expected empty store")
	}
}

func TestWatchStoreUsers(t *testing.T) {
	s := NewWatchStore(filepath.Join(t.TempDir(), "watch.json"))

	if err := s.AddItem(200, testItem("b")); err != nil {
		t.Fatal(err)
	}
	if err := s.AddItem(100, testItem("a")); err != nil {
		t.Fatal(err)
	}

	users := s.Users()
	if len(users) != 2 || users[0] != 100 || users[1] != 200 {
		t.Errorf("Expected sorted users [100 200], got %v", users)
	}
}

func TestWatchStorePurgeUser(t *testing.T) {
	s := NewWatchStore(filepath.Join(t.TempDir(), "watch.json"))

	if err := s.AddItem(100, testItem("item-1")); err != nil {
		t.Fatal(err)
	}

	existed, err := s.PurgeUser(100)
	if err != nil {
		t.Fatalf("PurgeUser failed: %v", err)
	}
	if !existed {
		t.Error("expected user 100 to have existed")
	}
	if len(s.Items(100)) != 0 {
		t.Error("expected no items after purge")
	}

	existed, err = s.PurgeUser(100)
	if err != nil {
		t.Fatalf("PurgeUser failed: %v", err)
	}
	if existed {
		t.Error("expected second purge to report user missing")
	}
}
