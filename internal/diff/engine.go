// Package diff compares two accepted snapshots key by key.
//
// The merge key is (settlement date, settlement period) when both snapshots
// carry a single identical settlement date; otherwise the snapshots span a
// midnight rollover and keying degrades to the period alone, keeping the
// comparison meaningful period-for-period across the boundary.
package diff

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/period"
)

// Compute outer-joins the previous and new snapshots on the chosen key and
// classifies every key in the union as unchanged, changed, appeared, or
// disappeared. Neither input is mutated. Entries come back in the canonical
// settlement period order with the settlement date as secondary key.
func Compute(prev, next models.Snapshot) models.Diff {
	sameDate := singleSharedDate(prev, next)

	type side struct {
		rec models.Record
		ok  bool
	}
	prevSide := make(map[models.Key]side)
	nextSide := make(map[models.Key]side)
	var keys []models.Key

	add := func(m map[models.Key]side, rec models.Record) {
		key := rec.Key()
		if !sameDate {
			key.SettlementDate = ""
		}
		if _, seen := prevSide[key]; !seen {
			if _, seen := nextSide[key]; !seen {
				keys = append(keys, key)
			}
		}
		m[key] = side{rec: rec, ok: true}
	}
	for _, rec := range prev.Records {
		add(prevSide, rec)
	}
	for _, rec := range next.Records {
		add(nextSide, rec)
	}

	d := models.Diff{
		ID:                  uuid.New().String(),
		SameDate:            sameDate,
		PreviousPublishedAt: prev.PublishedAt,
		NewPublishedAt:      next.PublishedAt,
		Entries:             make([]models.DiffEntry, 0, len(keys)),
		GeneratedAt:         time.Now(),
	}

	for _, key := range keys {
		p := prevSide[key]
		n := nextSide[key]

		entry := models.DiffEntry{
			SettlementPeriod: key.SettlementPeriod,
			Sign:             models.SignNone,
		}

		// Display date: prefer the new side across a rollover.
		switch {
		case n.ok:
			entry.SettlementDate = n.rec.SettlementDate
		case p.ok:
			entry.SettlementDate = p.rec.SettlementDate
		}

		if p.ok {
			pv := p.rec.Value()
			entry.PreviousValue = &pv
		}
		if n.ok {
			nv := n.rec.Value()
			entry.NewValue = &nv
			entry.Sign = signOf(nv)
		}

		switch {
		case p.ok && n.ok:
			delta := *entry.NewValue - *entry.PreviousValue
			entry.Delta = &delta
			if delta == 0 {
				entry.Status = models.StatusUnchanged
			} else {
				entry.Status = models.StatusChanged
			}
		case n.ok:
			entry.Status = models.StatusAppeared
		default:
			entry.Status = models.StatusDisappeared
		}

		d.Entries = append(d.Entries, entry)
	}

	sort.SliceStable(d.Entries, func(i, j int) bool {
		a, b := d.Entries[i], d.Entries[j]
		ra, rb := period.Rank(a.SettlementPeriod), period.Rank(b.SettlementPeriod)
		if ra != rb {
			return ra < rb
		}
		return a.SettlementDate < b.SettlementDate
	})

	return d
}

// singleSharedDate reports whether both snapshots carry exactly one
// settlement date and the two dates are equal.
func singleSharedDate(prev, next models.Snapshot) bool {
	pd := prev.Dates()
	nd := next.Dates()
	return len(pd) == 1 && len(nd) == 1 && pd[0] == nd[0]
}

func signOf(v float64) models.Sign {
	if v >= 0 {
		return models.SignPositive
	}
	return models.SignNegative
}
