package regen

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"CuboTrack/internal/engine/aggregator"
	"CuboTrack/internal/metrics"
	"CuboTrack/internal/model"
	"CuboTrack/internal/store"

	"github.com/google/uuid"
)

// Result describes the outcome of one regeneration request.
type Result struct {
	Ran     bool
	RunID   string
	Message string
	Err     error
}

// Regenerator rebuilds the report from the full event log and hands it to
// every configured writer.
type Regenerator struct {
	store   *store.Store
	writers []model.Writer
	gate    *Gate
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	latest *model.Report
}

// NewRegenerator creates a regenerator. Requests are gated by cooldown and
// each run is bounded by timeout.
func NewRegenerator(st *store.Store, writers []model.Writer, cooldown, timeout time.Duration) *Regenerator {
	return &Regenerator{
		store:   st,
		writers: writers,
		gate:    NewGate(cooldown),
		timeout: timeout,
		now:     time.Now,
	}
}

// Trigger runs a regeneration unless one ran within the cooldown window or is
// still running, in which case the request is dropped.
func (r *Regenerator) Trigger(ctx context.Context) Result {
	if !r.gate.Acquire() {
		metrics.Regenerations.WithLabelValues("skipped").Inc()
		return Result{Message: "Skipped: report was regenerated moments ago."}
	}
	defer r.gate.Release()

	report, err := r.Run(ctx)
	if err != nil {
		metrics.Regenerations.WithLabelValues("failed").Inc()
		log.Printf("[regen] Report regeneration failed: %v", err)
		res := Result{Ran: true, Err: err}
		if report != nil {
			res.RunID = report.RunID
		}
		return res
	}
	metrics.Regenerations.WithLabelValues("ran").Inc()
	return Result{Ran: true, RunID: report.RunID, Message: "Report regenerated."}
}

// Run builds the report and writes it, bypassing the cooldown gate.
func (r *Regenerator) Run(ctx context.Context) (*model.Report, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	records, err := r.store.Events.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	folded, err := r.store.Sessions.Fold()
	if err != nil {
		return nil, fmt.Errorf("failed to read session map: %w", err)
	}

	report := &model.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: r.now(),
		Operators:   aggregator.Build(records, folded, r.store.Known.Load()),
	}

	var errs []error
	for _, w := range r.writers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("regeneration aborted before %s writer: %w", w.Name(), err))
			break
		}
		if err := w.Write(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("%s writer: %w", w.Name(), err))
		}
	}

	r.mu.Lock()
	r.latest = report
	r.mu.Unlock()

	log.Printf("[regen] Run %s built %d sessions for %d operators from %d records.",
		report.RunID, report.SessionCount(), len(report.Operators), len(records))
	return report, errors.Join(errs...)
}

// Latest returns the most recently built report, or nil before the first run.
func (r *Regenerator) Latest() *model.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}
