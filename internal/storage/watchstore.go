// Package storage provides the persistent stores for stickerwatch: per-user
// watch configuration, notification dedup records, and the latest market
// snapshot cache.
//
// The watch store and snapshot cache are mutex-guarded in-memory structures
// persisted to JSON files with atomic writes (write temp, rename) and restored
// on application restart. The dedup store is backed by BuntDB so every
// state-changing decision is flushed to disk immediately.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nvoronin/stickerwatch/internal/models"
)

// UserConfig holds one user's watched items (keyed by item ID) and report
// preferences.
type UserConfig struct {
	Items   map[string]models.WatchedItem `json:"collections"`
	Reports models.ReportPrefs            `json:"daily_reports"`
}

// WatchStore provides thread-safe access to per-user watch configuration with
// JSON file persistence. Every mutation is flushed to disk before returning.
type WatchStore struct {
	users map[int64]*UserConfig
	mu    sync.RWMutex

	filePath string
}

// watchFile represents the file structure for JSON persistence
type watchFile struct {
	Version string                `json:"version"`
	SavedAt time.Time             `json:"saved_at"`
	Users   map[int64]*UserConfig `json:"users"`
}

// NewWatchStore creates a new WatchStore persisting to filePath.
func NewWatchStore(filePath string) *WatchStore {
	return &WatchStore{
		users:    make(map[int64]*UserConfig),
		filePath: filePath,
	}
}

// Load restores store state from file. A missing file is not an error; the
// store starts empty.
func (s *WatchStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return nil
	}

	jsonData, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read watch file: %w", err)
	}

	var data watchFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal watch file: %w", err)
	}

	s.users = data.Users
	if s.users == nil {
		s.users = make(map[int64]*UserConfig)
	}
	for _, cfg := range s.users {
		if cfg.Items == nil {
			cfg.Items = make(map[string]models.WatchedItem)
		}
	}

	return nil
}

// save persists store state to file. Caller must hold at least a read lock.
func (s *WatchStore) save() error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := watchFile{
		Version: "1.0",
		SavedAt: time.Now(),
		Users:   s.users,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watch data: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write watch file: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename watch file: %w", err)
	}

	return nil
}

func (s *WatchStore) ensureUser(userID int64) *UserConfig {
	cfg, exists := s.users[userID]
	if !exists {
		cfg = &UserConfig{Items: make(map[string]models.WatchedItem)}
		s.users[userID] = cfg
	}
	return cfg
}

// AddItem adds a watched item for a user and flushes to disk.
func (s *WatchStore) AddItem(userID int64, item models.WatchedItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid watched item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureUser(userID).Items[item.ID] = item
	return s.save()
}

// UpdateItem replaces an existing watched item and flushes to disk.
func (s *WatchStore) UpdateItem(userID int64, item models.WatchedItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid watched item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, exists := s.users[userID]
	if !exists {
		return fmt.Errorf("user not found: %d", userID)
	}
	if _, exists := cfg.Items[item.ID]; !exists {
		return fmt.Errorf("item not found: %s", item.ID)
	}

	cfg.Items[item.ID] = item
	return s.save()
}

// GetItem retrieves a watched item by user and item ID.
func (s *WatchStore) GetItem(userID int64, itemID string) (models.WatchedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, exists := s.users[userID]
	if !exists {
		return models.WatchedItem{}, false
	}
	item, exists := cfg.Items[itemID]
	return item, exists
}

// Items returns a copy of a user's watched items keyed by item ID.
func (s *WatchStore) Items(userID int64) map[string]models.WatchedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]models.WatchedItem)
	if cfg, exists := s.users[userID]; exists {
		for id, item := range cfg.Items {
			result[id] = item
		}
	}
	return result
}

// DeleteItem removes a watched item, returning the removed item. The caller
// is responsible for purging the item's notification records.
func (s *WatchStore) DeleteItem(userID int64, itemID string) (models.WatchedItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, exists := s.users[userID]
	if !exists {
		return models.WatchedItem{}, false, nil
	}
	item, exists := cfg.Items[itemID]
	if !exists {
		return models.WatchedItem{}, false, nil
	}

	delete(cfg.Items, itemID)
	return item, true, s.save()
}

// Users returns all known user IDs in ascending order.
func (s *WatchStore) Users() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReportPrefs retrieves a user's daily report preferences.
func (s *WatchStore) ReportPrefs(userID int64) (models.ReportPrefs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, exists := s.users[userID]
	if !exists {
		return models.ReportPrefs{}, false
	}
	return cfg.Reports, true
}

// SetReportPrefs updates a user's daily report preferences and flushes to disk.
func (s *WatchStore) SetReportPrefs(userID int64, prefs models.ReportPrefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureUser(userID).Reports = prefs
	return s.save()
}

// PurgeUser removes a user's entire configuration, returning whether the user
// existed. Used when a user loses whitelist access.
func (s *WatchStore) PurgeUser(userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[userID]; !exists {
		return false, nil
	}
	delete(s.users, userID)
	return true, s.save()
}
