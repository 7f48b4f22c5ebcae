package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"CuboTrack/internal/model"
)

// SessionMap is the append-only audit log of session open/close entries.
type SessionMap struct {
	path string
	mu   sync.Mutex
}

// NewSessionMap returns a session map backed by the file at path.
func NewSessionMap(path string) *SessionMap {
	return &SessionMap{path: path}
}

// Append writes one entry.
func (m *SessionMap) Append(entry *model.SessionMapEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return appendJSONLine(m.path, entry)
}

// Entries returns every well-formed entry in file order.
func (m *SessionMap) Entries() ([]*model.SessionMapEntry, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open session map: %w", err)
	}
	defer f.Close()

	var entries []*model.SessionMapEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry := &model.SessionMapEntry{Session: -1}
		if err := json.Unmarshal([]byte(line), entry); err != nil {
			continue
		}
		if entry.InstanceID == "" {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session map: %w", err)
	}
	return entries, nil
}

// Fold collapses the log by instance id; for each field the last non-empty write wins.
func (m *SessionMap) Fold() (map[string]*model.SessionMapEntry, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}
	folded := make(map[string]*model.SessionMapEntry, len(entries))
	for _, e := range entries {
		if cur, ok := folded[e.InstanceID]; ok {
			cur.Merge(e)
			continue
		}
		cp := *e
		folded[e.InstanceID] = &cp
	}
	return folded, nil
}
