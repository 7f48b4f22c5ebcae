package manager

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/engine/attribution"
	"CuboTrack/internal/store"

	"github.com/fsnotify/fsnotify"
)

// Manager is the single logical worker that feeds new event log lines to the
// attribution service. It polls on a fixed interval and, when watching is
// enabled, as soon as the event log is written.
type Manager struct {
	events    *store.EventLog
	service   *attribution.Service
	interval  time.Duration
	batchSize int
	watch     bool

	pollMu    sync.Mutex
	fsWatcher *fsnotify.Watcher
	nudge     chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a new Manager.
func NewManager(cfg *config.Config, events *store.EventLog, service *attribution.Service) (*Manager, error) {
	interval, err := config.ParseDuration("poller interval", cfg.Poller.Interval)
	if err != nil {
		return nil, err
	}

	return &Manager{
		events:    events,
		service:   service,
		interval:  interval,
		batchSize: cfg.Poller.BatchSize,
		watch:     cfg.Poller.Watch,
		nudge:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start launches the poll loop and, if enabled, the event log watcher.
func (m *Manager) Start() error {
	if m.watch {
		if err := m.startWatcher(); err != nil {
			return err
		}
	}

	m.wg.Add(1)
	go m.runPoller()
	log.Printf("[poller] Started with interval %s, batch size %d, watching: %t", m.interval, m.batchSize, m.watch)
	return nil
}

// Stop signals the loops to exit and waits for them.
func (m *Manager) Stop() {
	log.Println("[poller] Stopping...")
	close(m.done)
	if m.fsWatcher != nil {
		_ = m.fsWatcher.Close()
	}
	m.wg.Wait()
	log.Println("[poller] Stopped.")
}

// PollOnce applies every line appended since the last applied line and
// returns how many records were applied. Concurrent calls run one at a time.
func (m *Manager) PollOnce(ctx context.Context) (int, error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	applied := 0
	for {
		st, err := m.service.State(ctx)
		if err != nil {
			return applied, fmt.Errorf("failed to load attribution state: %w", err)
		}
		batch, err := m.events.ReadTail(st.LastSeenLine, m.batchSize)
		if err != nil {
			return applied, err
		}
		if len(batch.Records) == 0 {
			return applied, nil
		}
		if _, err := m.service.ProcessBatch(ctx, batch.Records); err != nil {
			return applied, err
		}
		applied += len(batch.Records)
		if len(batch.Records) < m.batchSize {
			return applied, nil
		}
	}
}

func (m *Manager) runPoller() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.poll()
		case <-m.nudge:
			m.poll()
		case <-m.done:
			m.poll()
			return
		}
	}
}

func (m *Manager) poll() {
	if _, err := m.PollOnce(context.Background()); err != nil {
		log.Printf("[poller] Poll failed: %v", err)
	}
}

func (m *Manager) startWatcher() error {
	dir := filepath.Dir(m.events.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create event log directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	m.fsWatcher = w

	m.wg.Add(1)
	go m.processEvents()
	return nil
}

func (m *Manager) processEvents() {
	defer m.wg.Done()
	target := filepath.Clean(m.events.Path())

	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case m.nudge <- struct{}{}:
			default:
			}
		case err, ok := <-m.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[poller] Watcher error: %v", err)
		}
	}
}
