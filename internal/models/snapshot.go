package models

import (
	"errors"
	"strings"
	"time"
)

// Listing is a single marketplace offer for a sticker pack.
type Listing struct {
	Marketplace string  `json:"marketplace"`
	Price       float64 `json:"price"`
	URL         string  `json:"url,omitempty"`
}

// Validate checks that all listing fields are valid.
func (l *Listing) Validate() error {
	if l.Marketplace == "" {
		return errors.New("marketplace must not be empty")
	}
	if l.Price <= 0 {
		return errors.New("listing price must be positive")
	}
	return nil
}

// PriceBundle groups the listings for one sticker pack across all integrated
// marketplaces, as returned by the stats API.
type PriceBundle struct {
	CollectionName  string    `json:"collection_name"`
	StickerpackName string    `json:"stickerpack_name"`
	Listings        []Listing `json:"listings"`
}

// MarketSnapshot is the full set of current marketplace listings fetched in
// one poll cycle. It is immutable once fetched and replaced wholesale on the
// next cycle.
type MarketSnapshot struct {
	FetchedAt time.Time     `json:"fetched_at"`
	Bundles   []PriceBundle `json:"bundles"`
}

// Find resolves the listing set for a (collection, pack) pair using a
// case-insensitive exact match on both names. The second return value is
// false when the pair is absent from the snapshot; absence means "not found",
// never a zero price.
func (s *MarketSnapshot) Find(collectionName, stickerpackName string) ([]Listing, bool) {
	for i := range s.Bundles {
		b := &s.Bundles[i]
		if strings.EqualFold(b.CollectionName, collectionName) &&
			strings.EqualFold(b.StickerpackName, stickerpackName) {
			return b.Listings, true
		}
	}
	return nil, false
}

// Age returns how stale the snapshot is relative to now.
func (s *MarketSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
