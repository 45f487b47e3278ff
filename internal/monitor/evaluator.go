// Package monitor implements the price monitoring core: threshold evaluation,
// notification deduplication, and the recurring poll loop.
//
// Evaluation is a pure function over a watched item and its current listings.
// A buy opportunity exists when the lowest listed price falls to or below
// launch_price × buy_multiplier; a sell opportunity when the highest price
// rises to or above launch_price × sell_multiplier. Both comparisons are
// inclusive and independent, so both directions can fire in the same cycle,
// even from a single listing when buy_multiplier >= sell_multiplier. That
// overlap is legal configuration rather than an error.
package monitor

import (
	"github.com/google/uuid"

	"github.com/nvoronin/stickerwatch/internal/models"
)

// Evaluate computes the buy/sell opportunities for one watched item given the
// listing set resolved for it from the current snapshot. A disabled item or
// an empty listing set yields no opportunities. Qualifying listings include
// every listing at or past the threshold, not just the extreme one, so the
// user sees full market depth.
func Evaluate(item models.WatchedItem, listings []models.Listing) []models.Opportunity {
	if !item.Enabled || len(listings) == 0 {
		return nil
	}

	lowest := listings[0].Price
	highest := listings[0].Price
	for _, l := range listings[1:] {
		if l.Price < lowest {
			lowest = l.Price
		}
		if l.Price > highest {
			highest = l.Price
		}
	}

	var opportunities []models.Opportunity

	buyThreshold := item.BuyThreshold()
	if lowest <= buyThreshold {
		var qualifying []models.Listing
		for _, l := range listings {
			if l.Price <= buyThreshold {
				qualifying = append(qualifying, l)
			}
		}
		opportunities = append(opportunities, models.Opportunity{
			ID:           uuid.New().String(),
			Direction:    models.DirectionBuy,
			TriggerPrice: lowest,
			Threshold:    buyThreshold,
			Listings:     qualifying,
		})
	}

	sellThreshold := item.SellThreshold()
	if highest >= sellThreshold {
		var qualifying []models.Listing
		for _, l := range listings {
			if l.Price >= sellThreshold {
				qualifying = append(qualifying, l)
			}
		}
		opportunities = append(opportunities, models.Opportunity{
			ID:           uuid.New().String(),
			Direction:    models.DirectionSell,
			TriggerPrice: highest,
			Threshold:    sellThreshold,
			Listings:     qualifying,
		})
	}

	return opportunities
}
