package models

import (
	"errors"
	"time"
)

// NotificationRecord is the persisted state preventing repeated alerts for the
// same unchanged opportunity. At most one record exists per
// (user, item, direction), and it always reflects the most recently *sent*
// notification, not every detected opportunity.
type NotificationRecord struct {
	LastPrice  float64   `json:"last_price"`
	LastSentAt time.Time `json:"last_sent_at"`
	SendCount  int       `json:"send_count"`
}

// Validate checks that all record fields are valid.
func (r *NotificationRecord) Validate() error {
	if r.LastPrice <= 0 {
		return errors.New("last price must be positive")
	}
	if r.LastSentAt.IsZero() {
		return errors.New("last sent time must be set")
	}
	if r.SendCount < 1 {
		return errors.New("send count must be at least 1")
	}
	return nil
}

// ReportPrefs holds a user's daily report preferences.
type ReportPrefs struct {
	Enabled        bool   `json:"enabled"`
	TimePreference string `json:"time_preference"` // "morning", "afternoon" or "evening"
	Timezone       string `json:"timezone"`        // IANA zone name
}
