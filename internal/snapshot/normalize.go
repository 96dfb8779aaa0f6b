// Package snapshot turns raw fetched records into normalized snapshots and
// holds the single most-recently-accepted snapshot for the scheduler.
//
// Normalization is last-write-wins per settlement period key: when the
// upstream resubmits a forecast for a period, the record with the latest
// publish time survives and the rest are dropped. Ties keep the first-seen
// record, so the result is deterministic for any input order.
package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/period"
)

// ErrNoData reports that no record carried a published value, so there is
// nothing to snapshot this cycle.
var ErrNoData = errors.New("no records with a published value")

// MalformedRecordError reports a record that carries a value but is missing
// required identity fields. This is a data-shape problem, not transience:
// the cycle's data is discarded without retrying.
type MalformedRecordError struct {
	Index int
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at index %d: %v", e.Index, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Normalize builds a snapshot from raw records: drops records without a
// published value, keeps the latest-published record per (date, period) key,
// and orders the result by the canonical settlement period sequence with the
// settlement date as secondary key. Normalize is idempotent.
func Normalize(records []models.Record) (models.Snapshot, error) {
	best := make(map[models.Key]models.Record)
	var order []models.Key // first-seen key order, for the tie-break

	for i, rec := range records {
		if !rec.HasValue() {
			// A record without a value carries no forecast for that key yet.
			continue
		}
		if err := rec.Validate(); err != nil {
			return models.Snapshot{}, &MalformedRecordError{Index: i, Err: err}
		}

		key := rec.Key()
		cur, seen := best[key]
		if !seen {
			best[key] = rec
			order = append(order, key)
			continue
		}
		// Last-write-wins by publish time; equal publish times keep the
		// first-seen record.
		if rec.PublishTime.After(cur.PublishTime) {
			best[key] = rec
		}
	}

	if len(best) == 0 {
		return models.Snapshot{}, ErrNoData
	}

	snap := models.Snapshot{
		ID:      uuid.New().String(),
		Records: make([]models.Record, 0, len(best)),
	}
	for _, key := range order {
		rec := best[key]
		snap.Records = append(snap.Records, rec)
		if rec.PublishTime.After(snap.PublishedAt) {
			snap.PublishedAt = rec.PublishTime
		}
	}

	sort.SliceStable(snap.Records, func(i, j int) bool {
		a, b := snap.Records[i], snap.Records[j]
		ra, rb := period.Rank(a.SettlementPeriod), period.Rank(b.SettlementPeriod)
		if ra != rb {
			return ra < rb
		}
		return a.SettlementDate < b.SettlementDate
	})

	return snap, nil
}
