package attribution

import (
	"errors"
	"strings"
	"time"

	"CuboTrack/internal/engine/aggregator"
	"CuboTrack/internal/model"
)

var (
	// ErrNoActiveSession is returned when finalizing while no session is open.
	ErrNoActiveSession = errors.New("no active session to finalize")
	// ErrNoObservedLine is returned when finalizing before any log line was seen.
	ErrNoObservedLine = errors.New("no event log line observed yet, nothing to close the session at")
	// ErrEmptyOperator is returned when a blank operator name is submitted.
	ErrEmptyOperator = errors.New("operator name must not be empty")
)

// Outcome lists what applying a batch (or finalizing) produced. Opens and
// Closes are the audit entries the caller must persist.
type Outcome struct {
	Opens           []*model.SessionMapEntry
	Closes          []*model.SessionMapEntry
	Changed         bool
	RegenerationDue bool
}

// Engine is the attribution state machine. It is pure given a state and a
// batch: it mutates the passed state and records and performs no I/O.
//
// There is a single active slot. A START for another device session while a
// session is open is ignored, and that session's records keep whatever
// operator they carried.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Apply runs every record of batch through the state machine in order.
func (e *Engine) Apply(st *model.AttributionState, batch []*model.Record) *Outcome {
	out := &Outcome{}

	for _, rec := range batch {
		key := model.DeviceSessionOf(rec)
		active := st.Active() && key.String() == st.ActiveKey

		if rec.Kind == model.KindStart && !st.Active() {
			chosen := resolveOperator(st.PendingOperator, st.LastOperator)
			st.ActiveOperator = chosen
			st.ActiveKey = key.String()
			st.ActiveInstance = key.InstanceID(rec.Line)
			st.StartLine = rec.Line
			st.ActiveSince = e.now().Format(time.RFC3339)
			st.PendingOperator = ""
			st.LastOperator = chosen
			out.Changed = true
			out.Opens = append(out.Opens, &model.SessionMapEntry{
				InstanceID: st.ActiveInstance,
				SrcIP:      key.SrcIP,
				Session:    key.Session,
				Operator:   chosen,
				StartLine:  rec.Line,
			})
			active = true
		}

		if active && aggregator.IsUnassigned(rec.Operator) {
			rec.Operator = resolveOperator(st.ActiveOperator)
		}

		if rec.Kind == model.KindStop && active {
			if st.ActiveInstance != "" {
				out.Closes = append(out.Closes, &model.SessionMapEntry{
					InstanceID: st.ActiveInstance,
					SrcIP:      key.SrcIP,
					Session:    key.Session,
					Operator:   resolveOperator(st.ActiveOperator),
					StopLine:   rec.Line,
				})
			}
			st.ClearActive()
			out.Changed = true
			out.RegenerationDue = true
		}
	}

	if len(batch) > 0 {
		if last := batch[len(batch)-1].Line; last > st.LastSeenLine {
			st.LastSeenLine = last
		}
		out.Changed = true
	}
	return out
}

// Finalize closes the active session at the last observed line, for devices
// that never sent STOP. It returns the operator the session was closed under.
// On error the state is left untouched.
func (e *Engine) Finalize(st *model.AttributionState) (*Outcome, string, error) {
	if !st.Active() || st.ActiveInstance == "" {
		return nil, "", ErrNoActiveSession
	}
	if st.LastSeenLine <= 0 {
		return nil, "", ErrNoObservedLine
	}

	key, err := model.ParseDeviceSession(st.ActiveKey)
	if err != nil {
		key = model.DeviceSession{Session: -1}
	}
	operator := resolveOperator(st.ActiveOperator, st.LastOperator)

	out := &Outcome{
		Closes: []*model.SessionMapEntry{{
			InstanceID: st.ActiveInstance,
			SrcIP:      key.SrcIP,
			Session:    key.Session,
			Operator:   operator,
			StopLine:   st.LastSeenLine,
		}},
		Changed:         true,
		RegenerationDue: true,
	}
	st.ClearActive()
	return out, operator, nil
}

// resolveOperator returns the first non-blank candidate, or the sentinel.
func resolveOperator(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return model.Unassigned
}
