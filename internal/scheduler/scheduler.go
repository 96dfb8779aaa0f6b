// Package scheduler drives the poll loop: wait until the next expected
// publish time, check for a newer snapshot, and fall back to a short backoff
// sequence when the upstream is late.
//
// The loop is a single thread of control; at most one fetch is in flight at
// any time and every sleep races against context cancellation, so shutdown
// happens between sleeps rather than only between fetches. A failed check
// never shifts expectations forward: the next cycle still waits one interval
// from the last accepted publish time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/diff"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/logger"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/snapshot"
)

// Fetcher retrieves raw records for the configured settlement day.
type Fetcher interface {
	Fetch(ctx context.Context, day time.Time) ([]models.Record, error)
}

// TitleContext carries the human-readable framing emitted with each snapshot
// or diff: the settlement date, the max publish time, and which update cycle
// produced it.
type TitleContext struct {
	SettlementDate string
	PublishedAt    time.Time
	Cycle          int
	Retry          bool // the diff came from a backoff retry, not the first check
}

// Sink receives accepted snapshots and computed diffs. Rendering and export
// are entirely the sink's concern.
type Sink interface {
	HandleSnapshot(snap models.Snapshot, tc TitleContext) error
	HandleDiff(d models.Diff, tc TitleContext) error
}

// MultiSink fans out to several sinks, collecting their errors.
type MultiSink []Sink

func (m MultiSink) HandleSnapshot(snap models.Snapshot, tc TitleContext) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.HandleSnapshot(snap, tc))
	}
	return errors.Join(errs...)
}

func (m MultiSink) HandleDiff(d models.Diff, tc TitleContext) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.HandleDiff(d, tc))
	}
	return errors.Join(errs...)
}

// History persists accepted snapshots and emitted diffs. It is optional;
// a nil History disables persistence.
type History interface {
	SaveSnapshot(snap models.Snapshot) error
	SaveDiff(d models.Diff) error
	LatestSnapshot() (models.Snapshot, bool, error)
}

// Config holds scheduler parameters.
type Config struct {
	Day             time.Time       // settlement day being watched
	UpdateInterval  time.Duration   // expected gap between forecast publishes
	Retry           bool            // run the backoff sequence after a miss
	RetryIncrements []time.Duration // backoff delays between re-checks
}

// Scheduler owns the poll loop and the snapshot store transitions.
type Scheduler struct {
	cfg     Config
	fetcher Fetcher
	store   *snapshot.Store
	history History
	sink    Sink
	clock   Clock
}

// New creates a scheduler. Pass a nil history to disable persistence and a
// nil clock to use the wall clock.
func New(cfg Config, fetcher Fetcher, store *snapshot.Store, history History, sink Sink, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		history: history,
		sink:    sink,
		clock:   clock,
	}
}

// Run seeds the store and then loops until the context is cancelled. The
// returned error is the context error on cancellation, or the underlying
// failure when the initial snapshot cannot be obtained.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.bootstrap(ctx); err != nil {
		return err
	}

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last, _ := s.store.Last()
		nextExpected := last.PublishedAt.Add(s.cfg.UpdateInterval)
		wait := nextExpected.Sub(s.clock.Now())

		if wait > 0 {
			logger.Info("cycle %d: waiting %v until next expected update at %v",
				cycle, wait.Round(time.Second), nextExpected)
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
		} else {
			logger.Info("cycle %d: expected update time %v is already %v in the past, checking now",
				cycle, nextExpected, (-wait).Round(time.Second))
		}

		logger.Info("cycle %d: checking for new data", cycle)
		if cand, ok := s.check(ctx); ok && s.tryAccept(last, cand, cycle, false) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if !s.cfg.Retry {
			logger.Info("cycle %d: no new data and retry disabled, waiting for the next interval", cycle)
			continue
		}

		if err := s.retrySequence(ctx, last, cycle); err != nil {
			return err
		}
	}
}

// retrySequence runs the fixed backoff delays after a first-attempt miss,
// abandoning the remainder as soon as a newer snapshot is accepted.
func (s *Scheduler) retrySequence(ctx context.Context, last models.Snapshot, cycle int) error {
	for _, delay := range s.cfg.RetryIncrements {
		logger.Info("cycle %d: no new data yet, retrying in %v", cycle, delay)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}

		if cand, ok := s.check(ctx); ok && s.tryAccept(last, cand, cycle, true) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	logger.Info("cycle %d: no new data after all retries, waiting for the next interval", cycle)
	return nil
}

// bootstrap seeds the store, preferring persisted history over a fresh
// fetch. A failed initial fetch is fatal: there is nothing to diff against.
func (s *Scheduler) bootstrap(ctx context.Context) error {
	if s.history != nil {
		snap, ok, err := s.history.LatestSnapshot()
		if err != nil {
			logger.Warn("failed to load persisted snapshot, fetching fresh: %v", err)
		} else if ok {
			s.store.Replace(snap)
			logger.Info("seeded from persisted snapshot published at %v", snap.PublishedAt)
			s.emitSnapshot(snap, 0)
			return nil
		}
	}

	logger.Info("fetching initial snapshot for settlement day %s", s.cfg.Day.Format("2006-01-02"))
	records, err := s.fetcher.Fetch(ctx, s.cfg.Day)
	if err != nil {
		return fmt.Errorf("initial fetch failed: %w", err)
	}
	snap, err := snapshot.Normalize(records)
	if err != nil {
		return fmt.Errorf("initial snapshot unusable: %w", err)
	}

	s.store.Replace(snap)
	if s.history != nil {
		if err := s.history.SaveSnapshot(snap); err != nil {
			logger.Warn("failed to persist initial snapshot: %v", err)
		}
	}
	logger.Info("initial snapshot accepted, latest publish time %v", snap.PublishedAt)
	s.emitSnapshot(snap, 0)
	return nil
}

// check fetches and normalizes one candidate snapshot. Both fetch failure
// and malformed data are non-fatal: the cycle simply sees no new data.
func (s *Scheduler) check(ctx context.Context) (models.Snapshot, bool) {
	records, err := s.fetcher.Fetch(ctx, s.cfg.Day)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("fetch failed: %v", err)
		}
		return models.Snapshot{}, false
	}

	cand, err := snapshot.Normalize(records)
	if err != nil {
		logger.Warn("discarding this cycle's data: %v", err)
		return models.Snapshot{}, false
	}
	return cand, true
}

// tryAccept installs the candidate when it is strictly newer than the last
// accepted snapshot, emitting the diff first. Equal publish times are not
// new data, so a no-op diff never advances the comparison point.
func (s *Scheduler) tryAccept(last, cand models.Snapshot, cycle int, retry bool) bool {
	logger.Debug("cycle %d: previous publish %v, candidate publish %v", cycle, last.PublishedAt, cand.PublishedAt)
	if !cand.PublishedAt.After(last.PublishedAt) {
		return false
	}

	if retry {
		logger.Info("cycle %d: new data found after retry", cycle)
	} else {
		logger.Info("cycle %d: new data found on first attempt", cycle)
	}

	d := diff.Compute(last, cand)
	d.Cycle = cycle

	tc := TitleContext{
		SettlementDate: cand.MainDate(),
		PublishedAt:    cand.PublishedAt,
		Cycle:          cycle,
		Retry:          retry,
	}
	if s.sink != nil {
		if err := s.sink.HandleDiff(d, tc); err != nil {
			logger.Error("diff sink failed: %v", err)
		}
	}

	s.store.Replace(cand)

	if s.history != nil {
		if err := s.history.SaveSnapshot(cand); err != nil {
			logger.Warn("failed to persist snapshot: %v", err)
		}
		if err := s.history.SaveDiff(d); err != nil {
			logger.Warn("failed to persist diff: %v", err)
		}
	}

	sum := d.Summary()
	logger.Info("cycle %d: diff emitted (%d changed, %d appeared, %d disappeared, %d unchanged, mean delta %+.1f MW)",
		cycle, sum.Changed, sum.Appeared, sum.Disappeared, sum.Unchanged, sum.MeanDelta)
	return true
}

func (s *Scheduler) emitSnapshot(snap models.Snapshot, cycle int) {
	if s.sink == nil {
		return
	}
	tc := TitleContext{
		SettlementDate: snap.MainDate(),
		PublishedAt:    snap.PublishedAt,
		Cycle:          cycle,
	}
	if err := s.sink.HandleSnapshot(snap, tc); err != nil {
		logger.Error("snapshot sink failed: %v", err)
	}
}

// sleep waits for d or until cancellation, whichever comes first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
