package aggregator

import (
	"testing"

	"CuboTrack/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, lines ...string) []*model.Record {
	t.Helper()
	recs := make([]*model.Record, 0, len(lines))
	for i, l := range lines {
		r, err := model.DecodeRecord([]byte(l), i+1)
		require.NoError(t, err, "line %d", i+1)
		recs = append(recs, r)
	}
	return recs
}

func TestSummarize_DeviceCounters(t *testing.T) {
	recs := decodeAll(t,
		`{"event":"start","user":"ALICE","session":1,"modo":"FACIL","ts":100,"dt":"2025-03-01 10:00:00","src_ip":"10.0.0.2"}`,
		`{"event":"ok","user":"ALICE","session":1,"modo":"FACIL","ts":200,"mic_freq":60,"src_ip":"10.0.0.2"}`,
		`{"event":"ok","user":"ALICE","session":1,"modo":"FACIL","ts":300,"mic_freq":40,"src_ip":"10.0.0.2"}`,
		`{"event":"stop","user":"ALICE","session":1,"modo":"FACIL","ts":600,"ok_total":2,"err_total":0,"total_ms":500,"dt":"2025-03-01 10:00:01","src_ip":"10.0.0.2"}`,
	)

	sessions := Summarize(recs, nil)
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.Equal(t, "ALICE", s.Operator)
	assert.Equal(t, int64(2), s.OkTotal)
	assert.Equal(t, int64(0), s.ErrTotal)
	assert.Equal(t, int64(500), s.DurationMs)
	assert.True(t, s.Complete)
	assert.Equal(t, "2025-03-01 10:00:00", s.StartedAt)
	assert.Equal(t, "2025-03-01 10:00:01", s.EndedAt)
	assert.Equal(t, "2025-03-01 10:00:01", s.SortKey)
	assert.Equal(t, "FACIL", s.Mode)
	assert.Equal(t, model.OutcomeCounts{OK: 2}, s.ByMode["FACIL"])
	assert.Equal(t, model.SensorCalm, s.Sensor.State)
	assert.Equal(t, 2, s.Sensor.Count)
}

func TestSummarize_FallbackRecount(t *testing.T) {
	recs := decodeAll(t,
		`{"event":"start","session":2,"ts":1,"src_ip":"10.0.0.2"}`,
		`{"event":"ok","session":2,"ts":2,"src_ip":"10.0.0.2"}`,
		`{"event":"ok","session":2,"ts":3,"src_ip":"10.0.0.2"}`,
		`{"event":"err","session":2,"ts":4,"src_ip":"10.0.0.2"}`,
		`{"event":"ok","session":2,"ts":5,"src_ip":"10.0.0.2"}`,
		`{"event":"stop","session":2,"ts":6,"ok_total":0,"err_total":0,"total_ms":0,"src_ip":"10.0.0.2"}`,
	)

	sessions := Summarize(recs, nil)
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.Equal(t, model.Unassigned, s.Operator)
	assert.Equal(t, int64(3), s.OkTotal)
	assert.Equal(t, int64(1), s.ErrTotal)
	assert.Equal(t, int64(0), s.DurationMs, "duration should be unknown")
	assert.True(t, s.Complete)
}

func TestSummarize_NoStop(t *testing.T) {
	recs := decodeAll(t,
		`{"event":"start","user":"BOB","session":3,"ts":1,"dt":"2025-03-01 09:00:00","src_ip":"10.0.0.3"}`,
		`{"event":"err","user":"BOB","session":3,"ts":2,"level":"L1","src_ip":"10.0.0.3"}`,
		`{"event":"ok","user":"BOB","session":3,"ts":3,"src_ip":"10.0.0.3"}`,
	)

	s := Summarize(recs, nil)[0]
	assert.False(t, s.Complete)
	assert.Equal(t, "", s.EndedAt)
	assert.Equal(t, "2025-03-01 09:00:00", s.SortKey)
	assert.Equal(t, int64(1), s.OkTotal)
	assert.Equal(t, int64(1), s.ErrTotal)
	assert.Equal(t, model.OutcomeCounts{Err: 1}, s.ByMode["L1"])
	assert.Equal(t, model.OutcomeCounts{OK: 1}, s.ByMode[model.Uninformed])
}

func TestSummarize_OrdersByTimestamp(t *testing.T) {
	recs := decodeAll(t,
		`{"event":"stop","user":"C","session":1,"ts":9,"ok_total":1,"err_total":0,"dt":"2025-01-01 00:00:09","src_ip":"ip"}`,
		`{"event":"start","user":"C","session":1,"ts":1,"modo":"M1","dt":"2025-01-01 00:00:01","src_ip":"ip"}`,
		`{"event":"ok","user":"C","session":1,"ts":5,"modo":"M2","src_ip":"ip"}`,
	)

	s := Summarize(recs, nil)[0]
	assert.Equal(t, "2025-01-01 00:00:01", s.StartedAt)
	assert.Equal(t, "M1", s.Mode)
}

func TestSummarize_RepresentativeModeWithoutStart(t *testing.T) {
	recs := decodeAll(t,
		`{"event":"ok","user":"D","session":1,"ts":1,"modo":"A","src_ip":"ip"}`,
		`{"event":"ok","user":"D","session":1,"ts":2,"modo":"B","src_ip":"ip"}`,
	)
	assert.Equal(t, "B", Summarize(recs, nil)[0].Mode)
}

func TestSummarize_IgnoresUnknownKinds(t *testing.T) {
	recs := decodeAll(t,
		`{"raw":"boot banner","src_ip":"ip"}`,
		`{"event":"heartbeat","session":1,"src_ip":"ip"}`,
	)
	assert.Empty(t, Summarize(recs, nil))
}

func TestSummarize_BackfillFromIndex(t *testing.T) {
	recs := decodeAll(t,
		`{"event":"start","user":"","session":4,"ts":1,"src_ip":"10.0.0.9"}`,
		`{"event":"ok","user":"UNASSIGNED","session":4,"ts":2,"src_ip":"10.0.0.9"}`,
		`{"event":"stop","session":4,"ts":3,"ok_total":1,"src_ip":"10.0.0.9"}`,
	)
	folded := map[string]*model.SessionMapEntry{
		"10.0.0.9|4|1": {InstanceID: "10.0.0.9|4|1", SrcIP: "10.0.0.9", Session: 4, Operator: "ERIN", StartLine: 1, StopLine: 3},
	}

	sessions := Summarize(recs, NewIndex(folded))
	require.Len(t, sessions, 1)
	assert.Equal(t, "ERIN", sessions[0].Operator)
	assert.Equal(t, 3, sessions[0].Records)
}

func TestIndex_LookupPrefersCoveringInstance(t *testing.T) {
	folded := map[string]*model.SessionMapEntry{
		"ip|1|10": {InstanceID: "ip|1|10", SrcIP: "ip", Session: 1, Operator: "FIRST", StartLine: 10, StopLine: 20},
		"ip|1|50": {InstanceID: "ip|1|50", SrcIP: "ip", Session: 1, Operator: "SECOND", StartLine: 50},
	}
	x := NewIndex(folded)
	key := model.DeviceSession{SrcIP: "ip", Session: 1}

	op, ok := x.Lookup(key, 15)
	require.True(t, ok)
	assert.Equal(t, "FIRST", op)

	op, _ = x.Lookup(key, 70)
	assert.Equal(t, "SECOND", op)

	// Outside every range: latest mapping for the device session.
	op, _ = x.Lookup(key, 5)
	assert.Equal(t, "SECOND", op)

	_, ok = x.Lookup(model.DeviceSession{SrcIP: "ip", Session: 2}, 15)
	assert.False(t, ok)
}
