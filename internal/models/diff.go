package models

import (
	"math"
	"time"
)

// Status classifies a settlement period key in a diff between two snapshots.
type Status string

const (
	StatusUnchanged   Status = "unchanged"
	StatusChanged     Status = "changed"
	StatusAppeared    Status = "appeared"
	StatusDisappeared Status = "disappeared"
)

// Sign classifies the new value of a diff entry.
type Sign string

const (
	SignPositive Sign = "positive"
	SignNegative Sign = "negative"
	SignNone     Sign = "none" // no new value for this key
)

// DiffEntry is the comparison result for one settlement period key.
// Delta is nil when either side is missing.
type DiffEntry struct {
	SettlementDate   string   `json:"settlement_date"`
	SettlementPeriod int      `json:"settlement_period"`
	Status           Status   `json:"status"`
	PreviousValue    *float64 `json:"previous_value"`
	NewValue         *float64 `json:"new_value"`
	Delta            *float64 `json:"delta"`
	Sign             Sign     `json:"sign"`
}

// Diff is the per-key comparison between two accepted snapshots.
// SameDate is true when both snapshots carried a single identical settlement
// date and the entries were keyed on (date, period); otherwise entries were
// keyed on period alone to stay meaningful across a midnight rollover.
type Diff struct {
	ID                  string      `json:"id"`
	Cycle               int         `json:"cycle"`
	SameDate            bool        `json:"same_date"`
	PreviousPublishedAt time.Time   `json:"previous_published_at"`
	NewPublishedAt      time.Time   `json:"new_published_at"`
	Entries             []DiffEntry `json:"entries"`
	GeneratedAt         time.Time   `json:"generated_at"`
}

// IsNoop reports whether every entry is unchanged.
func (d Diff) IsNoop() bool {
	for _, e := range d.Entries {
		if e.Status != StatusUnchanged {
			return false
		}
	}
	return true
}

// DiffSummary holds headline statistics over a diff's deltas.
type DiffSummary struct {
	Unchanged    int
	Changed      int
	Appeared     int
	Disappeared  int
	MeanDelta    float64 // over entries where both sides are present
	MeanAbsDelta float64
	MaxIncrease  float64
	MaxDecrease  float64
}

// Summary computes headline statistics for logging and notifications.
func (d Diff) Summary() DiffSummary {
	var s DiffSummary
	var n int
	for _, e := range d.Entries {
		switch e.Status {
		case StatusUnchanged:
			s.Unchanged++
		case StatusChanged:
			s.Changed++
		case StatusAppeared:
			s.Appeared++
		case StatusDisappeared:
			s.Disappeared++
		}
		if e.Delta == nil {
			continue
		}
		delta := *e.Delta
		n++
		s.MeanDelta += delta
		s.MeanAbsDelta += math.Abs(delta)
		if delta > s.MaxIncrease {
			s.MaxIncrease = delta
		}
		if delta < s.MaxDecrease {
			s.MaxDecrease = delta
		}
	}
	if n > 0 {
		s.MeanDelta /= float64(n)
		s.MeanAbsDelta /= float64(n)
	}
	return s
}
