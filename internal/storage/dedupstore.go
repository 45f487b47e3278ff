package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/buntdb"

	"github.com/nvoronin/stickerwatch/internal/models"
)

// RecordKey builds the dedup store key for a (user, item, direction) triple.
func RecordKey(userID int64, itemID string, direction models.Direction) string {
	return fmt.Sprintf("%d:%s:%s", userID, itemID, direction)
}

// ItemPrefix builds the key prefix covering both directions of one item.
func ItemPrefix(userID int64, itemID string) string {
	return fmt.Sprintf("%d:%s:", userID, itemID)
}

// UserPrefix builds the key prefix covering all of one user's records.
func UserPrefix(userID int64) string {
	return fmt.Sprintf("%d:", userID)
}

// DedupStore persists notification records in BuntDB, keyed
// "{user_id}:{item_id}:{direction}". Writes are synced to disk on every
// transaction so dedup state survives process restarts.
type DedupStore struct {
	db *buntdb.DB
}

// NewDedupStore opens (or creates) the dedup database at path.
// Pass ":memory:" for an ephemeral store in tests.
func NewDedupStore(path string) (*DedupStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup store: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.Always}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure dedup store: %w", err)
	}

	return &DedupStore{db: db}, nil
}

// Put stores or overwrites the record for key.
func (s *DedupStore) Put(key string, record models.NotificationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid notification record: %w", err)
	}

	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal notification record: %w", err)
	}

	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(content), nil)
		if err != nil {
			return fmt.Errorf("failed to store notification record: %w", err)
		}
		return nil
	})
}

// Get retrieves the record for key. The second return value is false when no
// record exists.
func (s *DedupStore) Get(key string) (models.NotificationRecord, bool, error) {
	var record models.NotificationRecord
	found := false

	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(val), &record); err != nil {
			return fmt.Errorf("failed to unmarshal notification record: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return models.NotificationRecord{}, false, err
	}
	return record, found, nil
}

// All returns every stored record keyed by its full key.
func (s *DedupStore) All() (map[string]models.NotificationRecord, error) {
	result := make(map[string]models.NotificationRecord)

	err := s.db.View(func(tx *buntdb.Tx) error {
		var iterErr error
		err := tx.Ascend("", func(key, value string) bool {
			var record models.NotificationRecord
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				iterErr = fmt.Errorf("failed to unmarshal record %s: %w", key, err)
				return false
			}
			result[key] = record
			return true
		})
		if err != nil {
			return err
		}
		return iterErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeletePrefix removes every record whose key starts with prefix and returns
// how many were removed. Deleting a watched item purges both of its
// directions this way, so a re-created item with the same names starts fresh.
func (s *DedupStore) DeletePrefix(prefix string) (int, error) {
	var keys []string

	err := s.db.Update(func(tx *buntdb.Tx) error {
		// Keys cannot be deleted mid-iteration; collect first.
		err := tx.Ascend("", func(key, value string) bool {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete records with prefix %s: %w", prefix, err)
	}
	return len(keys), nil
}

// Close closes the underlying database.
func (s *DedupStore) Close() error {
	return s.db.Close()
}
