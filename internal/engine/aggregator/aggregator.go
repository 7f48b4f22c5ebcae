package aggregator

import (
	"sort"
	"strings"

	"CuboTrack/internal/model"
)

// modeFields is the ordered list of fields consulted for an outcome's mode label.
var modeFields = []string{"modo", "mode", "level"}

type groupKey struct {
	operator string
	srcIP    string
	session  int
}

// Summarize groups records into sessions keyed by (operator, address, session)
// and summarizes each group. Records whose kind does not take part in
// aggregation are ignored. index may be nil.
func Summarize(records []*model.Record, index *Index) []*model.SessionSummary {
	var order []groupKey
	groups := make(map[groupKey][]*model.Record)

	for _, r := range records {
		if !r.Kind.Aggregated() {
			continue
		}
		if index != nil {
			index.Backfill([]*model.Record{r})
		}
		op := strings.TrimSpace(r.Operator)
		if op == "" {
			op = model.Unassigned
		}
		k := groupKey{operator: op, srcIP: strings.TrimSpace(r.SrcIP), session: r.Session}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	summaries := make([]*model.SessionSummary, 0, len(order))
	for _, k := range order {
		recs := groups[k]
		sort.SliceStable(recs, func(i, j int) bool {
			if recs[i].TS != recs[j].TS {
				return recs[i].TS < recs[j].TS
			}
			return recs[i].DT < recs[j].DT
		})
		summaries = append(summaries, summarizeSession(k, recs))
	}
	return summaries
}

func summarizeSession(k groupKey, recs []*model.Record) *model.SessionSummary {
	var start, stop *model.Record
	for _, r := range recs {
		if r.Kind == model.KindStart {
			start = r
			break
		}
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Kind == model.KindStop {
			stop = recs[i]
			break
		}
	}

	s := &model.SessionSummary{
		Operator: k.operator,
		SrcIP:    k.srcIP,
		Session:  k.session,
		Records:  len(recs),
		Complete: stop != nil,
		ByMode:   make(map[string]model.OutcomeCounts),
	}

	if stop != nil {
		s.OkTotal = deref(stop.Summary.OkTotal)
		s.ErrTotal = deref(stop.Summary.ErrTotal)
	}
	if stop == nil || (s.OkTotal == 0 && s.ErrTotal == 0) {
		// The device's own counters are missing or reset: recount and leave
		// the duration unknown.
		s.OkTotal, s.ErrTotal = 0, 0
		for _, r := range recs {
			switch r.Kind {
			case model.KindOK:
				s.OkTotal++
			case model.KindErr:
				s.ErrTotal++
			}
		}
	} else if ms := deref(stop.Summary.TotalMs); ms > 0 {
		s.DurationMs = ms
	}

	if start != nil {
		s.StartedAt = start.DT
	}
	if stop != nil {
		s.EndedAt = stop.DT
	}
	s.SortKey = s.EndedAt
	if s.SortKey == "" {
		s.SortKey = s.StartedAt
	}

	for _, r := range recs {
		if r.Kind != model.KindOK && r.Kind != model.KindErr {
			continue
		}
		label := r.Label(modeFields...)
		if label == "" {
			label = model.Uninformed
		}
		c := s.ByMode[label]
		if r.Kind == model.KindOK {
			c.OK++
		} else {
			c.Err++
		}
		s.ByMode[label] = c
	}

	if start != nil && start.Mode != "" {
		s.Mode = start.Mode
	} else if len(recs) > 0 {
		s.Mode = recs[len(recs)-1].Mode
	}

	s.Sensor = SummarizeSensor(recs)
	return s
}

func deref(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}
