package attribution

import (
	"context"
	"fmt"
	"log"
	"strings"

	"CuboTrack/internal/engine/regen"
	"CuboTrack/internal/metrics"
	"CuboTrack/internal/model"
	"CuboTrack/internal/store"
)

// Regenerator requests a report regeneration.
type Regenerator interface {
	Trigger(ctx context.Context) regen.Result
}

// FinalizeResult is returned by a successful Finalize.
type FinalizeResult struct {
	Operator string
	Regen    regen.Result
}

// Service runs every read-modify-write of the attribution state through
// StateStore.Update, so the backend decides the exclusion scope: one process
// for the file store, every process sharing the key for redis. Regeneration
// runs after the update has been released.
type Service struct {
	engine *Engine
	state  store.StateStore
	audit  *store.SessionMap
	known  *store.KnownOperators
	regen  Regenerator
}

// NewService wires the engine to its persistence. regenerator may be nil.
func NewService(engine *Engine, state store.StateStore, st *store.Store, regenerator Regenerator) *Service {
	return &Service{
		engine: engine,
		state:  state,
		audit:  st.Sessions,
		known:  st.Known,
		regen:  regenerator,
	}
}

// ProcessBatch applies a batch of records and persists the outcome. Records at
// or below the last line already applied are skipped, so overlapping batches
// from concurrent pollers are applied once.
func (s *Service) ProcessBatch(ctx context.Context, batch []*model.Record) (*Outcome, error) {
	out := &Outcome{}
	applied := false
	err := s.state.Update(ctx, func(st *model.AttributionState) (bool, error) {
		fresh := batch[:0:0]
		for _, rec := range batch {
			if rec.Line > st.LastSeenLine {
				fresh = append(fresh, rec)
			}
		}
		if len(fresh) == 0 {
			return false, nil
		}

		out = s.engine.Apply(st, fresh)
		if err := s.appendAudit(out); err != nil {
			return false, err
		}
		applied = true
		return out.Changed, nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return out, nil
	}

	metrics.BatchesProcessed.Inc()
	metrics.SessionsOpened.Add(float64(len(out.Opens)))
	metrics.SessionsClosed.WithLabelValues("stop").Add(float64(len(out.Closes)))
	for _, e := range out.Opens {
		log.Printf("Session %s opened for operator '%s'", e.InstanceID, e.Operator)
	}
	for _, e := range out.Closes {
		log.Printf("Session %s closed at line %d", e.InstanceID, e.StopLine)
	}

	if out.RegenerationDue {
		s.triggerRegen(ctx, "session closed")
	}
	return out, nil
}

// appendAudit writes the session-map entries of an outcome. It runs inside
// the state update, before the state is saved.
func (s *Service) appendAudit(out *Outcome) error {
	for _, e := range out.Opens {
		if err := s.audit.Append(e); err != nil {
			return fmt.Errorf("failed to record session open: %w", err)
		}
	}
	for _, e := range out.Closes {
		if err := s.audit.Append(e); err != nil {
			return fmt.Errorf("failed to record session close: %w", err)
		}
	}
	return nil
}

// SetPending stages name for the next START and remembers it as a known operator.
func (s *Service) SetPending(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyOperator
	}

	err := s.state.Update(ctx, func(st *model.AttributionState) (bool, error) {
		st.PendingOperator = name
		return true, nil
	})
	if err != nil {
		return "", err
	}

	if err := s.known.Add(name); err != nil {
		log.Printf("Failed to remember operator '%s': %v", name, err)
	}
	return name, nil
}

// State returns a snapshot of the current state.
func (s *Service) State(ctx context.Context) (*model.AttributionState, error) {
	return s.state.Load(ctx)
}

// Finalize closes the active session without a STOP record and triggers a
// regeneration. On ErrNoActiveSession or ErrNoObservedLine nothing is persisted.
func (s *Service) Finalize(ctx context.Context) (*FinalizeResult, error) {
	var (
		out      *Outcome
		operator string
	)
	err := s.state.Update(ctx, func(st *model.AttributionState) (bool, error) {
		var err error
		out, operator, err = s.engine.Finalize(st)
		if err != nil {
			return false, err
		}
		if err := s.appendAudit(out); err != nil {
			return false, err
		}
		return out.Changed, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Session %s finalized manually for operator '%s'", out.Closes[0].InstanceID, operator)
	metrics.SessionsClosed.WithLabelValues("finalize").Inc()
	res := &FinalizeResult{Operator: operator}
	res.Regen = s.triggerRegen(ctx, "session finalized")
	return res, nil
}

func (s *Service) triggerRegen(ctx context.Context, reason string) regen.Result {
	if s.regen == nil {
		return regen.Result{Message: "Report regeneration is not configured."}
	}
	res := s.regen.Trigger(ctx)
	if res.Ran && res.Err == nil {
		log.Printf("Report regenerated (%s), run %s", reason, res.RunID)
	}
	return res
}
