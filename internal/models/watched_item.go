// Package models defines the core domain entities for the stickerwatch application.
// These models represent watched sticker packs, marketplace listings, price
// snapshots, detected opportunities, and notification records. All models include
// built-in validation to ensure data integrity throughout the application.
//
// Terminology:
//   - Collection: a sticker collection on the marketplace (e.g. "Notcoin").
//   - Sticker pack: a single pack within a collection. The (collection, pack)
//     pair is the unit a user watches.
//   - Launch price: the immutable reference price (in TON) the pack minted at;
//     buy/sell thresholds are multiples of it.
package models

import (
	"errors"
	"time"
)

// WatchedItem is a (collection, sticker pack) pair a user has configured to
// monitor, with a reference launch price and alert multipliers.
//
// Buy alerts fire when the lowest listed price falls to or below
// LaunchPrice×BuyMultiplier; sell alerts fire when the highest listed price
// rises to or above LaunchPrice×SellMultiplier. The two checks are independent
// one-sided comparisons: BuyMultiplier >= SellMultiplier is legal configuration
// and makes both fire at once.
type WatchedItem struct {
	ID              string    `json:"id"`
	CollectionName  string    `json:"collection_name"`
	StickerpackName string    `json:"stickerpack_name"`
	LaunchPrice     float64   `json:"launch_price"`
	BuyMultiplier   float64   `json:"buy_multiplier"`
	SellMultiplier  float64   `json:"sell_multiplier"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks that all watched item fields are valid. A non-positive
// launch price or multiplier is rejected here so it can never reach the
// evaluator.
func (w *WatchedItem) Validate() error {
	if w.ID == "" {
		return errors.New("item ID must not be empty")
	}
	if w.CollectionName == "" {
		return errors.New("collection name must not be empty")
	}
	if w.StickerpackName == "" {
		return errors.New("stickerpack name must not be empty")
	}
	if w.LaunchPrice <= 0 {
		return errors.New("launch price must be positive")
	}
	if w.BuyMultiplier <= 0 {
		return errors.New("buy multiplier must be positive")
	}
	if w.SellMultiplier <= 0 {
		return errors.New("sell multiplier must be positive")
	}
	return nil
}

// BuyThreshold returns the price at or below which a buy opportunity exists.
func (w *WatchedItem) BuyThreshold() float64 {
	return w.LaunchPrice * w.BuyMultiplier
}

// SellThreshold returns the price at or above which a sell opportunity exists.
func (w *WatchedItem) SellThreshold() float64 {
	return w.LaunchPrice * w.SellMultiplier
}
