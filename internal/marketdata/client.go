// Package marketdata provides a client for the sticker marketplace stats API.
// It fetches the current minimum-price bundles for every tracked sticker pack
// and normalizes them into a MarketSnapshot.
//
// The client performs exactly one attempt per call and returns a typed
// FetchError on failure; retry policy belongs to the monitor loop, which
// sleeps a fixed error interval and tries again next cycle.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nvoronin/stickerwatch/internal/logger"
	"github.com/nvoronin/stickerwatch/internal/models"
)

// FetchError represents a failed snapshot fetch: network error, non-success
// HTTP status, or malformed payload. State is never updated on failure; the
// caller reuses the last good snapshot or skips the cycle.
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("market data fetch failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("market data fetch failed (%s)", e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client provides access to the marketplace stats API
type Client struct {
	apiBaseURL string
	httpClient *http.Client
	now        func() time.Time
}

// priceBundle mirrors the wire format of the min-price-bundles endpoint.
type priceBundle struct {
	CollectionName string             `json:"collectionName"`
	CharacterName  string             `json:"characterName"`
	Marketplaces   []marketplaceEntry `json:"marketplaces"`
}

type marketplaceEntry struct {
	Marketplace string  `json:"marketplace"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	URL         string  `json:"url"`
}

// NewClient creates a new marketplace stats client
func NewClient(apiBaseURL string, timeout time.Duration) *Client {
	return &Client{
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// FetchSnapshot retrieves the current price bundles for all tracked sticker
// packs and returns them as a normalized snapshot. Packs absent from the
// result are simply not in the snapshot; absence never means zero price.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	url := fmt.Sprintf("%s/characters/min-price-bundles", c.apiBaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Reason: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Reason: "network", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Reason: "status", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var bundles []priceBundle
	if err := json.NewDecoder(resp.Body).Decode(&bundles); err != nil {
		return nil, &FetchError{Reason: "decode", Err: err}
	}

	snapshot := &models.MarketSnapshot{
		FetchedAt: c.now(),
		Bundles:   make([]models.PriceBundle, 0, len(bundles)),
	}

	skipped := 0
	for _, b := range bundles {
		if b.CollectionName == "" || b.CharacterName == "" {
			skipped++
			continue
		}

		listings := make([]models.Listing, 0, len(b.Marketplaces))
		for _, m := range b.Marketplaces {
			listing := models.Listing{
				Marketplace: m.Marketplace,
				Price:       m.Price,
				URL:         m.URL,
			}
			if err := listing.Validate(); err != nil {
				skipped++
				continue
			}
			listings = append(listings, listing)
		}

		snapshot.Bundles = append(snapshot.Bundles, models.PriceBundle{
			CollectionName:  b.CollectionName,
			StickerpackName: b.CharacterName,
			Listings:        listings,
		})
	}

	if skipped > 0 {
		logger.Debug("FetchSnapshot: skipped %d malformed bundle entries", skipped)
	}
	logger.Debug("FetchSnapshot: %d bundles normalized", len(snapshot.Bundles))

	return snapshot, nil
}
