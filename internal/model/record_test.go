package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord_DeviceFields(t *testing.T) {
	line := `{"event":"STOP","user":"alice","session":3,"modo":"FACIL","mic_freq":91.5,"mic_int":"0.25","mic_type":2,"ok_total":4,"err_total":1,"total_ms":5200,"ts":123,"dt":"2025-01-02 10:00:00","src_ip":"10.0.0.5","src_port":40000}`

	r, err := DecodeRecord([]byte(line), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, r.Line)
	assert.Equal(t, KindStop, r.Kind)
	assert.Equal(t, "alice", r.Operator)
	assert.Equal(t, 3, r.Session)
	assert.Equal(t, "FACIL", r.Mode)
	assert.Equal(t, int64(123), r.TS)
	assert.Equal(t, "10.0.0.5", r.SrcIP)
	assert.Equal(t, 40000, r.SrcPort)
	require.NotNil(t, r.Sample.Freq)
	assert.InDelta(t, 91.5, *r.Sample.Freq, 1e-9)
	require.NotNil(t, r.Sample.Intensity)
	assert.InDelta(t, 0.25, *r.Sample.Intensity, 1e-9)
	require.NotNil(t, r.Sample.Type)
	assert.Equal(t, 2, *r.Sample.Type)
	require.NotNil(t, r.Summary.TotalMs)
	assert.Equal(t, int64(5200), *r.Summary.TotalMs)
}

func TestDecodeRecord_Defaults(t *testing.T) {
	r, err := DecodeRecord([]byte(`{"raw":"hello"}`), 1)
	require.NoError(t, err)

	assert.Equal(t, Kind(""), r.Kind)
	assert.False(t, r.Kind.Aggregated())
	assert.Equal(t, -1, r.Session)
	assert.Equal(t, int64(0), r.TS)
	assert.Nil(t, r.Sample.Freq)
	assert.Nil(t, r.Summary.OkTotal)
}

func TestDecodeRecord_NonNumericSensorIgnored(t *testing.T) {
	r, err := DecodeRecord([]byte(`{"event":"ok","mic_freq":"loud","mic_int":0.5,"session":"4"}`), 2)
	require.NoError(t, err)

	assert.Nil(t, r.Sample.Freq)
	require.NotNil(t, r.Sample.Intensity)
	assert.Equal(t, 4, r.Session)
}

func TestDecodeRecord_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"truncated", `{"event":"start"`},
		{"array", `[1,2,3]`},
		{"scalar", `42`},
		{"null", `null`},
		{"blank", `   `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(tt.line), 1)
			assert.Error(t, err)
		})
	}
}

func TestRecord_LabelFallback(t *testing.T) {
	r, err := DecodeRecord([]byte(`{"event":"ok","modo":"  ","level":"L2"}`), 1)
	require.NoError(t, err)

	assert.Equal(t, "", r.Mode)
	assert.Equal(t, "L2", r.Label("modo", "mode", "level"))
	assert.Equal(t, "", r.Label("missing"))
}

func TestRecord_MarshalJSON(t *testing.T) {
	r, err := DecodeRecord([]byte(`{"event":"ok","user":"","session":1,"extra":{"a":1}}`), 9)
	require.NoError(t, err)
	r.Operator = "bob"

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "bob", out["user"])
	assert.Equal(t, float64(9), out["_line"])
	assert.Equal(t, map[string]any{"a": float64(1)}, out["extra"])
}

func TestDeviceSession_RoundTrip(t *testing.T) {
	k := DeviceSession{SrcIP: "192.168.0.9", Session: 12}
	assert.Equal(t, "192.168.0.9|12", k.String())
	assert.Equal(t, "192.168.0.9|12|40", k.InstanceID(40))

	parsed, err := ParseDeviceSession(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParseDeviceSession("no-separator")
	assert.Error(t, err)
}

func TestSessionMapEntry_Merge(t *testing.T) {
	open := &SessionMapEntry{InstanceID: "ip|1|5", SrcIP: "ip", Session: 1, Operator: "ALICE", StartLine: 5}
	open.Merge(&SessionMapEntry{InstanceID: "ip|1|5", SrcIP: "ip", Session: 1, Operator: "ALICE", StopLine: 9})

	assert.Equal(t, 5, open.StartLine)
	assert.Equal(t, 9, open.StopLine)
	assert.Equal(t, "ALICE", open.Operator)
}
