package alerter

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/metrics"
	"CuboTrack/internal/model"
)

// StateSource returns the current attribution state.
type StateSource interface {
	State(ctx context.Context) (*model.AttributionState, error)
}

// Alerter watches for a session left open longer than stale_after, which
// usually means the STOP datagram was lost, and sends one notice per session
// instance.
type Alerter struct {
	source        StateSource
	notifier      model.Notifier
	checkInterval time.Duration
	staleAfter    time.Duration
	now           func() time.Time

	notified string
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, source StateSource, notifier model.Notifier) (*Alerter, error) {
	interval, err := config.ParseDuration("alerter check_interval", cfg.CheckInterval)
	if err != nil {
		return nil, err
	}
	staleAfter, err := config.ParseDuration("alerter stale_after", cfg.StaleAfter)
	if err != nil {
		return nil, err
	}

	return &Alerter{
		source:        source,
		notifier:      notifier,
		checkInterval: interval,
		staleAfter:    staleAfter,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the periodic check in the background.
func (a *Alerter) Start() {
	log.Printf("[alert] Alerter started, sessions are stale after %s", a.staleAfter)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := a.Check(context.Background()); err != nil {
					log.Printf("[alert] Check failed: %v", err)
				}
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop gracefully stops the check loop.
func (a *Alerter) Stop() {
	log.Println("[alert] Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
}

// Check inspects the state once and reports whether a notice was sent.
func (a *Alerter) Check(ctx context.Context) (bool, error) {
	st, err := a.source.State(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load attribution state: %w", err)
	}
	if !st.Active() || st.ActiveSince == "" || st.ActiveInstance == a.notified {
		return false, nil
	}

	since, err := time.Parse(time.RFC3339, st.ActiveSince)
	if err != nil {
		return false, fmt.Errorf("invalid active_since %q: %w", st.ActiveSince, err)
	}
	open := a.now().Sub(since)
	if open < a.staleAfter {
		return false, nil
	}

	device := st.ActiveKey
	if ds, err := model.ParseDeviceSession(st.ActiveKey); err == nil {
		device = fmt.Sprintf("%s (session %d)", ds.SrcIP, ds.Session)
	}
	operator := st.ActiveOperator
	if operator == "" {
		operator = model.Unassigned
	}

	subject := fmt.Sprintf("CuboTrack: session open for %s", open.Round(time.Minute))
	body := fmt.Sprintf("Session %s on device %s, operator %s, has been open since %s without a STOP.\n"+
		"If the device stopped, finalize the session from the live page or with `cuboctl finalize`.",
		st.ActiveInstance, device, operator, since.Local().Format(model.DateTimeLayout))

	if err := a.notifier.Send(subject, body); err != nil {
		return false, fmt.Errorf("failed to send notice: %w", err)
	}
	a.notified = st.ActiveInstance
	metrics.StaleSessionAlerts.Inc()
	log.Printf("[alert] Stale session notice sent for %s", st.ActiveInstance)
	return true, nil
}
