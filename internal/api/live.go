package api

import (
	"context"
	"log"
	"strings"

	"CuboTrack/internal/engine/aggregator"
	"CuboTrack/internal/engine/attribution"
	"CuboTrack/internal/engine/regen"
	"CuboTrack/internal/model"
	"CuboTrack/internal/report"
	"CuboTrack/internal/store"
)

// TailRequest asks for the records after line After.
type TailRequest struct {
	After int `json:"after"`
	Max   int `json:"max"`
}

// TailResponse carries a batch of records annotated with their operator.
type TailResponse struct {
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Items     []*model.Record `json:"items"`
	NextAfter int             `json:"next_after"`
}

// StateRequest is empty.
type StateRequest struct{}

// StateResponse exposes the operator side of the attribution state.
type StateResponse struct {
	OK              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
	PendingOperator string `json:"pending_operator"`
	ActiveOperator  string `json:"active_operator"`
	LastOperator    string `json:"last_operator"`
}

// PendingRequest stages an operator for the next session. User is accepted
// as an alias of Operator.
type PendingRequest struct {
	Operator string `json:"operator"`
	User     string `json:"user,omitempty"`
}

// PendingResponse echoes the staged operator.
type PendingResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Operator string `json:"operator,omitempty"`
}

// RegenerateRequest is empty.
type RegenerateRequest struct{}

// RegenerateResponse reports the outcome of a regeneration request.
type RegenerateResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// FinalizeRequest is empty.
type FinalizeRequest struct{}

// FinalizeResponse reports a manual finalize and the regeneration it caused.
type FinalizeResponse struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error,omitempty"`
	Message           string `json:"message,omitempty"`
	FinalizedOperator string `json:"finalized_operator,omitempty"`
	RunID             string `json:"run_id,omitempty"`
}

// OperatorListing is one row of the report index.
type OperatorListing struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	LastActivity string `json:"last_activity"`
	Sessions     int    `json:"sessions"`
}

// ReportsResponse lists the operators of the latest report.
type ReportsResponse struct {
	OK          bool              `json:"ok"`
	RunID       string            `json:"run_id,omitempty"`
	GeneratedAt string            `json:"generated_at,omitempty"`
	Operators   []OperatorListing `json:"operators"`
}

// Poller drains new event log lines into the attribution state.
type Poller interface {
	PollOnce(ctx context.Context) (int, error)
}

// Reports runs and remembers report regenerations.
type Reports interface {
	Trigger(ctx context.Context) regen.Result
	Latest() *model.Report
}

// Live implements the polling interface shared by the HTTP and gRPC front
// ends.
type Live struct {
	events   *store.EventLog
	sessions *store.SessionMap
	service  *attribution.Service
	poller   Poller
	reports  Reports
	tailMax  int
}

// NewLive creates the polling interface. poller and reports may be nil.
func NewLive(st *store.Store, service *attribution.Service, poller Poller, reports Reports, tailMax int) *Live {
	if tailMax <= 0 {
		tailMax = store.DefaultTailMax
	}
	return &Live{
		events:   st.Events,
		sessions: st.Sessions,
		service:  service,
		poller:   poller,
		reports:  reports,
		tailMax:  tailMax,
	}
}

// Tail applies pending lines to the attribution state, then returns the
// records after req.After with the operator resolved from the session map.
func (l *Live) Tail(ctx context.Context, req *TailRequest) (*TailResponse, error) {
	if l.poller != nil {
		if _, err := l.poller.PollOnce(ctx); err != nil {
			log.Printf("[api] Poll before tail failed: %v", err)
		}
	}

	after := req.After
	if after < 0 {
		after = 0
	}
	limit := req.Max
	if limit <= 0 || limit > l.tailMax {
		limit = l.tailMax
	}

	batch, err := l.events.ReadTail(after, limit)
	if err != nil {
		return nil, err
	}

	folded, err := l.sessions.Fold()
	if err != nil {
		log.Printf("[api] Failed to read session map, items left unannotated: %v", err)
	} else {
		aggregator.NewIndex(folded).Backfill(batch.Records)
	}

	items := batch.Records
	if items == nil {
		items = []*model.Record{}
	}
	return &TailResponse{OK: true, Items: items, NextAfter: batch.NextCursor}, nil
}

// State returns the pending, active and last-used operators.
func (l *Live) State(ctx context.Context) (*StateResponse, error) {
	st, err := l.service.State(ctx)
	if err != nil {
		return nil, err
	}
	return &StateResponse{
		OK:              true,
		PendingOperator: st.PendingOperator,
		ActiveOperator:  st.ActiveOperator,
		LastOperator:    st.LastOperator,
	}, nil
}

// SetPending stages the operator for the next START.
func (l *Live) SetPending(ctx context.Context, req *PendingRequest) (*PendingResponse, error) {
	name := req.Operator
	if strings.TrimSpace(name) == "" {
		name = req.User
	}
	name, err := l.service.SetPending(ctx, name)
	if err != nil {
		return nil, err
	}
	log.Printf("[api] Next operator set to '%s'", name)
	return &PendingResponse{OK: true, Operator: name}, nil
}

// Regenerate requests a report regeneration, subject to the cooldown.
func (l *Live) Regenerate(ctx context.Context) (*RegenerateResponse, error) {
	if l.reports == nil {
		return nil, ErrReportsDisabled
	}
	res := l.reports.Trigger(ctx)
	if res.Err != nil {
		return nil, &RegenerationError{RunID: res.RunID, Err: res.Err}
	}
	return &RegenerateResponse{OK: true, Message: res.Message, RunID: res.RunID}, nil
}

// Finalize closes the active session without a STOP record.
func (l *Live) Finalize(ctx context.Context) (*FinalizeResponse, error) {
	res, err := l.service.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[api] Active session finalized for operator '%s'", res.Operator)

	resp := &FinalizeResponse{
		OK:                true,
		Message:           "Session finalized. " + res.Regen.Message,
		FinalizedOperator: res.Operator,
		RunID:             res.Regen.RunID,
	}
	if res.Regen.Err != nil {
		resp.OK = false
		resp.Message = "Session finalized."
		resp.Error = "report regeneration failed: " + res.Regen.Err.Error()
	}
	return resp, nil
}

// Reports lists the operators of the latest report.
func (l *Live) Reports() *ReportsResponse {
	resp := &ReportsResponse{OK: true, Operators: []OperatorListing{}}
	if l.reports == nil {
		return resp
	}
	latest := l.reports.Latest()
	if latest == nil {
		return resp
	}

	resp.RunID = latest.RunID
	resp.GeneratedAt = latest.GeneratedAt.Format(model.DateTimeLayout)
	slugs := report.Slugs(latest.Operators)
	for i, op := range latest.Operators {
		resp.Operators = append(resp.Operators, OperatorListing{
			Name:         op.Name,
			Slug:         slugs[i],
			LastActivity: op.LastActivity,
			Sessions:     len(op.Sessions),
		})
	}
	return resp
}
