package store

import (
	"log"
	"strings"
	"sync"
)

type knownOperatorsDoc struct {
	Operators []string `json:"operators"`
}

// KnownOperators is the bounded most-recently-used list of operator names.
// Names are deduplicated case-insensitively.
type KnownOperators struct {
	path string
	max  int
	mu   sync.Mutex
}

// NewKnownOperators returns the list stored at path, keeping at most max names.
func NewKnownOperators(path string, max int) *KnownOperators {
	if max <= 0 {
		max = 50
	}
	return &KnownOperators{path: path, max: max}
}

// Load returns the normalized list, most recent first. A missing or unreadable
// document yields an empty list.
func (k *KnownOperators) Load() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.load()
}

// Add moves name to the front of the list, trimming it to the configured size.
// Blank names are ignored.
func (k *KnownOperators) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	names := []string{name}
	for _, n := range k.load() {
		if !strings.EqualFold(n, name) {
			names = append(names, n)
		}
	}
	if len(names) > k.max {
		names = names[:k.max]
	}
	return saveJSON(k.path, knownOperatorsDoc{Operators: names})
}

func (k *KnownOperators) load() []string {
	var doc knownOperatorsDoc
	if _, err := loadJSON(k.path, &doc); err != nil {
		log.Printf("Ignoring unreadable known operators list: %v", err)
		return nil
	}
	return normalizeNames(doc.Operators)
}

func normalizeNames(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToUpper(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
