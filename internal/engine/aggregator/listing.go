package aggregator

import (
	"sort"
	"strings"

	"CuboTrack/internal/model"
)

// BuildListing groups sessions by operator. Sessions are ordered by sort key,
// most recent first. Known operators without sessions are listed too, unless
// an operator with sessions already matches them case-insensitively.
// Operators are ordered by their most recent activity; operators without
// activity come last, alphabetically.
func BuildListing(sessions []*model.SessionSummary, known []string) []*model.OperatorReport {
	byOperator := make(map[string][]*model.SessionSummary)
	seen := make(map[string]bool)
	for _, s := range sessions {
		byOperator[s.Operator] = append(byOperator[s.Operator], s)
		seen[strings.ToUpper(s.Operator)] = true
	}

	names := make([]string, 0, len(byOperator)+len(known))
	for name := range byOperator {
		names = append(names, name)
	}
	for _, name := range known {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToUpper(name)] {
			continue
		}
		seen[strings.ToUpper(name)] = true
		names = append(names, name)
	}

	ops := make([]*model.OperatorReport, 0, len(names))
	for _, name := range names {
		list := byOperator[name]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].SortKey > list[j].SortKey
		})
		op := &model.OperatorReport{Name: name, Sessions: list}
		if len(list) > 0 {
			op.LastActivity = list[0].SortKey
		}
		if op.Sessions == nil {
			op.Sessions = []*model.SessionSummary{}
		}
		ops = append(ops, op)
	}

	sort.SliceStable(ops, func(i, j int) bool {
		a, b := strings.ToLower(ops[i].Name), strings.ToLower(ops[j].Name)
		if a != b {
			return a < b
		}
		return ops[i].Name < ops[j].Name
	})
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].LastActivity > ops[j].LastActivity
	})
	return ops
}

// Build produces the per-operator listing from the raw event log contents.
func Build(records []*model.Record, folded map[string]*model.SessionMapEntry, known []string) []*model.OperatorReport {
	return BuildListing(Summarize(records, NewIndex(folded)), known)
}
