// Package models defines the core domain entities for the imbalance watcher.
// These models represent individual forecast observations, coherent publish
// snapshots, and the per-period diffs computed between snapshots. Validation
// lives at this boundary so that absent upstream fields fail fast instead of
// surfacing deep inside the diff arithmetic.
//
// Terminology (matching Elexon's own naming):
//   - Settlement period: a half-hour slot within a UTC settlement day,
//     numbered 1..48 (50 on a long clock-change day).
//   - Publish time: when the upstream forecast run that produced an
//     observation was published. The max publish time across a snapshot is
//     the snapshot's identity for "is this newer".
package models

import (
	"errors"
	"fmt"
	"time"
)

// Record is one observation from the BMRS indicated-imbalance evolution feed.
// IndicatedImbalance is a pointer because the upstream emits rows for periods
// whose forecast has not been published yet; those carry a JSON null.
type Record struct {
	SettlementDate     string   `json:"settlementDate"` // UTC settlement day, "YYYY-MM-DD"
	SettlementPeriod   int      `json:"settlementPeriod"`
	StartTime          time.Time `json:"startTime"`
	PublishTime        time.Time `json:"publishTime"`
	IndicatedImbalance *float64  `json:"indicatedImbalance"` // MW, nil when not yet published
}

// Key identifies a record within a snapshot.
type Key struct {
	SettlementDate   string
	SettlementPeriod int
}

// Key returns the (settlement date, settlement period) identity of the record.
func (r Record) Key() Key {
	return Key{SettlementDate: r.SettlementDate, SettlementPeriod: r.SettlementPeriod}
}

// HasValue reports whether the record carries a published imbalance value.
func (r Record) HasValue() bool {
	return r.IndicatedImbalance != nil
}

// Value returns the imbalance value; only meaningful when HasValue is true.
func (r Record) Value() float64 {
	if r.IndicatedImbalance == nil {
		return 0
	}
	return *r.IndicatedImbalance
}

// Validate checks that all required record fields are present and well formed.
func (r Record) Validate() error {
	if r.SettlementDate == "" {
		return errors.New("settlement date must not be empty")
	}
	if _, err := time.Parse("2006-01-02", r.SettlementDate); err != nil {
		return fmt.Errorf("settlement date %q is not YYYY-MM-DD", r.SettlementDate)
	}
	if r.SettlementPeriod < 1 {
		return fmt.Errorf("settlement period must be >= 1, got %d", r.SettlementPeriod)
	}
	if r.PublishTime.IsZero() {
		return errors.New("publish time must not be zero")
	}
	return nil
}
