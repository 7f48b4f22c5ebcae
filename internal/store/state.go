package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"CuboTrack/internal/config"
	"CuboTrack/internal/model"
)

// StateStore loads and saves the attribution state document.
type StateStore interface {
	// Load returns the current state, or a zero state when none was saved yet.
	Load(ctx context.Context) (*model.AttributionState, error)

	// Save overwrites the stored state.
	Save(ctx context.Context, st *model.AttributionState) error

	// Update runs fn on the current state with every other Update on the
	// same backend excluded, and saves the state when fn reports a change.
	// An error from fn aborts the update without saving.
	Update(ctx context.Context, fn UpdateFunc) error
}

// UpdateFunc mutates st and reports whether it must be saved.
type UpdateFunc func(st *model.AttributionState) (bool, error)

// FileStateStore keeps the state as a JSON document on disk. Updates are
// exclusive within one process.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore returns a state store backed by the file at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load reads the state file. Missing or unparseable files load as the zero state.
func (s *FileStateStore) Load(ctx context.Context) (*model.AttributionState, error) {
	st := &model.AttributionState{}
	if _, err := loadJSON(s.path, st); err != nil {
		log.Printf("Ignoring unreadable attribution state, starting idle: %v", err)
		return &model.AttributionState{}, nil
	}
	return st, nil
}

// Save atomically replaces the state file.
func (s *FileStateStore) Save(ctx context.Context, st *model.AttributionState) error {
	if err := saveJSON(s.path, st); err != nil {
		return fmt.Errorf("failed to save attribution state: %w", err)
	}
	return nil
}

// Update loads, applies fn and saves under the store's mutex.
func (s *FileStateStore) Update(ctx context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.Load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(st)
	if err != nil || !changed {
		return err
	}
	return s.Save(ctx, st)
}

// NewStateStore builds the state store selected by the configuration.
func NewStateStore(cfg *config.Config) (StateStore, error) {
	switch cfg.State.Backend {
	case "", "file":
		return NewFileStateStore(cfg.Store.Path(cfg.Store.StateFile)), nil
	case "redis":
		return NewRedisStateStore(cfg.State.Redis)
	default:
		return nil, fmt.Errorf("unknown state backend: '%s'", cfg.State.Backend)
	}
}

// Store groups the file-backed documents shared by the API, the poller and
// the report regenerator.
type Store struct {
	Events   *EventLog
	Sessions *SessionMap
	Known    *KnownOperators
}

// New opens the documents named in cfg.
func New(cfg config.StoreConfig) *Store {
	return &Store{
		Events:   NewEventLog(cfg.Path(cfg.EventLog)),
		Sessions: NewSessionMap(cfg.Path(cfg.SessionMap)),
		Known:    NewKnownOperators(cfg.Path(cfg.KnownOperators), cfg.MaxKnownOperators),
	}
}
