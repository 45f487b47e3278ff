package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nvoronin/stickerwatch/internal/models"
)

// SnapshotCache keeps the latest good market snapshot in memory and mirrors
// it to a JSON file for ad-hoc lookups (manual checks, daily reports) and for
// restarts between poll cycles.
type SnapshotCache struct {
	latest *models.MarketSnapshot
	mu     sync.RWMutex

	filePath string
}

// NewSnapshotCache creates a cache persisting to filePath.
func NewSnapshotCache(filePath string) *SnapshotCache {
	return &SnapshotCache{filePath: filePath}
}

// Load restores the cached snapshot from file. A missing file is not an
// error; the cache starts empty.
func (c *SnapshotCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tempPath := c.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(c.filePath); os.IsNotExist(err) {
		return nil
	}

	jsonData, err := os.ReadFile(c.filePath)
	if err != nil {
		return fmt.Errorf("failed to read snapshot cache: %w", err)
	}

	var snapshot models.MarketSnapshot
	if err := json.Unmarshal(jsonData, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot cache: %w", err)
	}

	c.latest = &snapshot
	return nil
}

// Put replaces the cached snapshot and persists it.
func (c *SnapshotCache) Put(snapshot *models.MarketSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = snapshot

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tempPath := c.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot cache: %w", err)
	}
	if err := os.Rename(tempPath, c.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot cache: %w", err)
	}

	return nil
}

// Latest returns the most recent good snapshot, or false when none has been
// stored yet.
func (c *SnapshotCache) Latest() (*models.MarketSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.latest == nil {
		return nil, false
	}
	return c.latest, true
}
