package models

import (
	"errors"
	"time"
)

// Snapshot is one coherent set of observations, normalized so that each
// (settlement date, settlement period) key maps to exactly one record with a
// published value. PublishedAt is the max publish time across the records and
// is the value the scheduler compares to decide whether a candidate is newer.
type Snapshot struct {
	ID          string    `json:"id"`
	Records     []Record  `json:"records"`
	PublishedAt time.Time `json:"published_at"`
}

// IsEmpty reports whether the snapshot holds no records.
func (s Snapshot) IsEmpty() bool {
	return len(s.Records) == 0
}

// Dates returns the distinct settlement dates present, in first-seen order.
// A snapshot covering a local calendar day normally spans two UTC dates
// (periods 47-48 of the prior day plus 1-46 of the selected day).
func (s Snapshot) Dates() []string {
	seen := make(map[string]bool)
	var dates []string
	for _, r := range s.Records {
		if !seen[r.SettlementDate] {
			seen[r.SettlementDate] = true
			dates = append(dates, r.SettlementDate)
		}
	}
	return dates
}

// MainDate returns the latest settlement date present, used for titling.
func (s Snapshot) MainDate() string {
	var max string
	for _, r := range s.Records {
		if r.SettlementDate > max {
			max = r.SettlementDate
		}
	}
	return max
}

// Validate checks that the snapshot is well formed.
func (s Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID must not be empty")
	}
	if len(s.Records) == 0 {
		return errors.New("snapshot must contain at least one record")
	}
	if s.PublishedAt.IsZero() {
		return errors.New("snapshot published time must not be zero")
	}
	seen := make(map[Key]bool, len(s.Records))
	for _, r := range s.Records {
		if err := r.Validate(); err != nil {
			return err
		}
		if !r.HasValue() {
			return errors.New("snapshot records must carry a published value")
		}
		if seen[r.Key()] {
			return errors.New("snapshot must contain one record per settlement period key")
		}
		seen[r.Key()] = true
	}
	return nil
}
