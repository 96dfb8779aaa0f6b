package diff

import (
	"testing"
	"time"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
)

func fptr(v float64) *float64 { return &v }

func snap(id string, publish time.Time, recs ...models.Record) models.Snapshot {
	return models.Snapshot{ID: id, Records: recs, PublishedAt: publish}
}

func rec(date string, sp int, publish time.Time, value float64) models.Record {
	return models.Record{
		SettlementDate:     date,
		SettlementPeriod:   sp,
		PublishTime:        publish,
		IndicatedImbalance: fptr(value),
	}
}

func entryFor(t *testing.T, d models.Diff, sp int) models.DiffEntry {
	t.Helper()
	for _, e := range d.Entries {
		if e.SettlementPeriod == sp {
			return e
		}
	}
	t.Fatalf("No entry for settlement period %d", sp)
	return models.DiffEntry{}
}

func TestComputeSelfDiffIsNoop(t *testing.T) {
	publish := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)
	s := snap("a", publish,
		rec("2025-12-07", 1, publish, 100),
		rec("2025-12-07", 2, publish, -50),
	)

	d := Compute(s, s)

	if !d.IsNoop() {
		t.Error("Expected diff of a snapshot against itself to be a no-op")
	}
	if len(d.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(d.Entries))
	}
	for _, e := range d.Entries {
		if e.Status != models.StatusUnchanged {
			t.Errorf("SP %d: status = %s, want unchanged", e.SettlementPeriod, e.Status)
		}
		if e.Delta == nil || *e.Delta != 0 {
			t.Errorf("SP %d: delta = %v, want 0", e.SettlementPeriod, e.Delta)
		}
	}
}

func TestComputeClassification(t *testing.T) {
	prevPub := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)
	newPub := time.Date(2025, 12, 7, 10, 30, 0, 0, time.UTC)

	prev := snap("prev", prevPub,
		rec("2025-12-07", 1, prevPub, 100),
		rec("2025-12-07", 2, prevPub, 200),
	)
	next := snap("next", newPub,
		rec("2025-12-07", 1, newPub, 150),
		rec("2025-12-07", 2, newPub, 200),
		rec("2025-12-07", 3, newPub, 50),
	)

	d := Compute(prev, next)

	if !d.SameDate {
		t.Error("Expected same-date keying")
	}
	if len(d.Entries) != 3 {
		t.Fatalf("Expected union of 3 keys, got %d entries", len(d.Entries))
	}

	e1 := entryFor(t, d, 1)
	if e1.Status != models.StatusChanged {
		t.Errorf("SP 1: status = %s, want changed", e1.Status)
	}
	if e1.Delta == nil || *e1.Delta != 50 {
		t.Errorf("SP 1: delta = %v, want +50", e1.Delta)
	}

	e2 := entryFor(t, d, 2)
	if e2.Status != models.StatusUnchanged {
		t.Errorf("SP 2: status = %s, want unchanged", e2.Status)
	}
	if e2.Delta == nil || *e2.Delta != 0 {
		t.Errorf("SP 2: delta = %v, want 0", e2.Delta)
	}

	e3 := entryFor(t, d, 3)
	if e3.Status != models.StatusAppeared {
		t.Errorf("SP 3: status = %s, want appeared", e3.Status)
	}
	if e3.Delta != nil {
		t.Errorf("SP 3: delta = %v, want nil", *e3.Delta)
	}
	if e3.PreviousValue != nil {
		t.Errorf("SP 3: previous value = %v, want nil", *e3.PreviousValue)
	}
}

func TestComputeDisappeared(t *testing.T) {
	prevPub := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)
	newPub := time.Date(2025, 12, 7, 10, 30, 0, 0, time.UTC)

	prev := snap("prev", prevPub,
		rec("2025-12-07", 1, prevPub, 100),
		rec("2025-12-07", 2, prevPub, 200),
	)
	next := snap("next", newPub,
		rec("2025-12-07", 1, newPub, 100),
	)

	d := Compute(prev, next)

	e2 := entryFor(t, d, 2)
	if e2.Status != models.StatusDisappeared {
		t.Errorf("SP 2: status = %s, want disappeared", e2.Status)
	}
	if e2.NewValue != nil {
		t.Errorf("SP 2: new value = %v, want nil", *e2.NewValue)
	}
	if e2.Sign != models.SignNone {
		t.Errorf("SP 2: sign = %s, want none", e2.Sign)
	}
}

func TestComputeSigns(t *testing.T) {
	prevPub := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)
	newPub := time.Date(2025, 12, 7, 10, 30, 0, 0, time.UTC)

	prev := snap("prev", prevPub, rec("2025-12-07", 1, prevPub, 10))
	next := snap("next", newPub,
		rec("2025-12-07", 1, newPub, -10),
		rec("2025-12-07", 2, newPub, 0),
	)

	d := Compute(prev, next)

	if e := entryFor(t, d, 1); e.Sign != models.SignNegative {
		t.Errorf("SP 1: sign = %s, want negative", e.Sign)
	}
	// Zero counts as positive, matching the presentation convention.
	if e := entryFor(t, d, 2); e.Sign != models.SignPositive {
		t.Errorf("SP 2: sign = %s, want positive", e.Sign)
	}
}

func TestComputeDateRolloverFallsBackToPeriodKey(t *testing.T) {
	prevPub := time.Date(2025, 12, 7, 23, 30, 0, 0, time.UTC)
	newPub := time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)

	prev := snap("prev", prevPub, rec("2025-12-07", 5, prevPub, 100))
	next := snap("next", newPub, rec("2025-12-08", 5, newPub, 130))

	d := Compute(prev, next)

	if d.SameDate {
		t.Error("Expected period-only keying across differing dates")
	}
	if len(d.Entries) != 1 {
		t.Fatalf("Expected 1 entry keyed on period alone, got %d", len(d.Entries))
	}
	e := d.Entries[0]
	if e.Status != models.StatusChanged {
		t.Errorf("Status = %s, want changed", e.Status)
	}
	if e.Delta == nil || *e.Delta != 30 {
		t.Errorf("Delta = %v, want +30", e.Delta)
	}
	if e.SettlementDate != "2025-12-08" {
		t.Errorf("Display date = %q, want the new side's date", e.SettlementDate)
	}
}

func TestComputeCanonicalOrdering(t *testing.T) {
	prevPub := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)
	newPub := time.Date(2025, 12, 7, 10, 30, 0, 0, time.UTC)

	prev := snap("prev", prevPub,
		rec("2025-12-07", 2, prevPub, 1),
		rec("2025-12-06", 47, prevPub, 2),
		rec("2025-12-07", 1, prevPub, 3),
	)
	next := snap("next", newPub,
		rec("2025-12-07", 2, newPub, 1),
		rec("2025-12-06", 48, newPub, 4),
		rec("2025-12-07", 1, newPub, 3),
	)

	d := Compute(prev, next)

	want := []int{47, 48, 1, 2}
	if len(d.Entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(d.Entries))
	}
	for i, e := range d.Entries {
		if e.SettlementPeriod != want[i] {
			t.Errorf("Entries[%d].SettlementPeriod = %d, want %d", i, e.SettlementPeriod, want[i])
		}
	}
}

func TestComputeDoesNotMutateInputs(t *testing.T) {
	prevPub := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)
	newPub := time.Date(2025, 12, 7, 10, 30, 0, 0, time.UTC)

	prev := snap("prev", prevPub, rec("2025-12-07", 1, prevPub, 100))
	next := snap("next", newPub, rec("2025-12-07", 1, newPub, 150))

	_ = Compute(prev, next)

	if prev.Records[0].Value() != 100 || next.Records[0].Value() != 150 {
		t.Error("Compute must not mutate its inputs")
	}
}
