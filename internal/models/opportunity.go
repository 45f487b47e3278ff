package models

import (
	"errors"
	"math"
)

// Direction discriminates buy and sell opportunities and their notification
// records. The two directions never interact.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Opportunity is a detected buy or sell threshold crossing for one watched
// item in one cycle. TriggerPrice is the lowest listed price for buys and
// the highest for sells; Listings holds every listing at or past the
// threshold, so the user sees full market depth rather than a single offer.
type Opportunity struct {
	ID           string    `json:"id"`
	Direction    Direction `json:"direction"`
	TriggerPrice float64   `json:"trigger_price"`
	Threshold    float64   `json:"threshold"`
	Listings     []Listing `json:"listings"`
}

// Validate checks that all opportunity fields are valid.
func (o *Opportunity) Validate() error {
	if o.ID == "" {
		return errors.New("opportunity ID must not be empty")
	}
	if !o.Direction.Valid() {
		return errors.New("direction must be 'buy' or 'sell'")
	}
	if o.TriggerPrice <= 0 {
		return errors.New("trigger price must be positive")
	}
	if o.Threshold <= 0 {
		return errors.New("threshold must be positive")
	}
	if len(o.Listings) == 0 {
		return errors.New("opportunity must carry at least one qualifying listing")
	}
	switch o.Direction {
	case DirectionBuy:
		if o.TriggerPrice > o.Threshold && !almostEqual(o.TriggerPrice, o.Threshold) {
			return errors.New("buy trigger price must be at or below the threshold")
		}
	case DirectionSell:
		if o.TriggerPrice < o.Threshold && !almostEqual(o.TriggerPrice, o.Threshold) {
			return errors.New("sell trigger price must be at or above the threshold")
		}
	}
	return nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
