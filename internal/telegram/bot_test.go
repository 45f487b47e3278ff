package telegram

import (
	"path/filepath"
	"testing"

	"github.com/nvoronin/stickerwatch/internal/models"
	"github.com/nvoronin/stickerwatch/internal/storage"
)

func TestSessionManager(t *testing.T) {
	m := newSessionManager()

	if m.inFlow(100) {
		t.Error("new user should not be in a flow")
	}

	s := m.get(100)
	s.state = stateAddingCollectionName
	if !m.inFlow(100) {
		t.Error("user should be in a flow after state change")
	}
	if m.inFlow(200) {
		t.Error("flow state leaked across users")
	}

	// get must return the same session instance.
	if m.get(100).state != stateAddingCollectionName {
		t.Error("get returned a fresh session for an active flow")
	}

	m.reset(100)
	if m.inFlow(100) {
		t.Error("user should be idle after reset")
	}
}

func newTestWatchStore(t *testing.T) *storage.WatchStore {
	t.Helper()
	s := storage.NewWatchStore(filepath.Join(t.TempDir(), "user_settings.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("failed to load watch store: %v", err)
	}
	return s
}

func TestItemOrderingAndIndexing(t *testing.T) {
	watch := newTestWatchStore(t)
	b := &Bot{watch: watch}

	add := func(id, collection, pack string) {
		t.Helper()
		err := watch.AddItem(42, models.WatchedItem{
			ID:              id,
			CollectionName:  collection,
			StickerpackName: pack,
			LaunchPrice:     10,
			BuyMultiplier:   2,
			SellMultiplier:  3,
		})
		if err != nil {
			t.Fatalf("failed to add item: %v", err)
		}
	}
	add("id-c", "Notcoin", "Diamond Paws")
	add("id-a", "Hamster Kombat", "Golden Hamster")
	add("id-b", "Hamster Kombat", "Silver Hamster")

	items := b.sortedItems(42)
	gotIDs := []string{items[0].ID, items[1].ID, items[2].ID}
	wantIDs := []string{"id-a", "id-b", "id-c"}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("sorted order = %v, want %v", gotIDs, wantIDs)
		}
	}

	tests := []struct {
		name   string
		arg    string
		wantID string
		wantOK bool
	}{
		{"first item", "1", "id-a", true},
		{"last item", "3", "id-c", true},
		{"zero index", "0", "", false},
		{"out of range", "4", "", false},
		{"not a number", "abc", "", false},
		{"negative", "-1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := b.itemByIndex(42, tt.arg)
			if ok != tt.wantOK {
				t.Fatalf("itemByIndex(%q) ok = %v, want %v", tt.arg, ok, tt.wantOK)
			}
			if ok && item.ID != tt.wantID {
				t.Errorf("itemByIndex(%q) = %s, want %s", tt.arg, item.ID, tt.wantID)
			}
		})
	}

	if _, ok := b.itemByIndex(99, "1"); ok {
		t.Error("itemByIndex resolved an item for a user with no items")
	}
}
