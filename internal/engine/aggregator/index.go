package aggregator

import (
	"sort"
	"strings"

	"CuboTrack/internal/model"
)

// Index resolves the operator of a record from the folded session map.
type Index struct {
	byDevice map[model.DeviceSession][]*model.SessionMapEntry
}

// NewIndex builds an index over folded session-map entries.
func NewIndex(folded map[string]*model.SessionMapEntry) *Index {
	x := &Index{byDevice: make(map[model.DeviceSession][]*model.SessionMapEntry)}
	for _, e := range folded {
		if e.SrcIP == "" || e.Session < 0 || strings.TrimSpace(e.Operator) == "" {
			continue
		}
		k := model.DeviceSession{SrcIP: e.SrcIP, Session: e.Session}
		x.byDevice[k] = append(x.byDevice[k], e)
	}
	for _, entries := range x.byDevice {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].StartLine != entries[j].StartLine {
				return entries[i].StartLine < entries[j].StartLine
			}
			return entries[i].InstanceID < entries[j].InstanceID
		})
	}
	return x
}

// Lookup returns the operator of the instance whose line range covers line.
// When no instance covers it, the most recently opened instance of the same
// device session answers, so records that predate a mapping still resolve.
func (x *Index) Lookup(key model.DeviceSession, line int) (string, bool) {
	entries := x.byDevice[key]
	if len(entries) == 0 {
		return "", false
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.StartLine > 0 && e.StartLine <= line && (e.StopLine == 0 || line <= e.StopLine) {
			return strings.TrimSpace(e.Operator), true
		}
	}
	return strings.TrimSpace(entries[len(entries)-1].Operator), true
}

// Backfill sets the operator of records that carry none (or the sentinel)
// and returns how many were changed.
func (x *Index) Backfill(records []*model.Record) int {
	n := 0
	for _, r := range records {
		if !IsUnassigned(r.Operator) || r.SrcIP == "" || r.Session < 0 {
			continue
		}
		if op, ok := x.Lookup(model.DeviceSessionOf(r), r.Line); ok {
			r.Operator = op
			n++
		}
	}
	return n
}

// IsUnassigned reports whether name carries no real operator identity.
func IsUnassigned(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == model.Unassigned
}
