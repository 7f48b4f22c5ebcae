package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Unassigned is the operator name used when no operator could be resolved.
const Unassigned = "UNASSIGNED"

// DateTimeLayout is the layout of the server-local "dt" stamp.
const DateTimeLayout = "2006-01-02 15:04:05"

// Kind is the lowercase event kind carried by a device record.
type Kind string

const (
	KindStart     Kind = "start"
	KindOK        Kind = "ok"
	KindErr       Kind = "err"
	KindStop      Kind = "stop"
	KindTelemetry Kind = "telemetry"
)

// Aggregated reports whether records of this kind take part in session aggregation.
func (k Kind) Aggregated() bool {
	switch k {
	case KindStart, KindOK, KindErr, KindStop, KindTelemetry:
		return true
	}
	return false
}

// Sample is the microphone reading a device attaches to a record.
// A nil field means the device did not send it or sent a non-numeric value.
type Sample struct {
	Freq      *float64
	Intensity *float64
	Type      *int
}

// Summary holds the counters a device reports, final on STOP and running on OK/ERR.
type Summary struct {
	TotalMs  *int64
	OkTotal  *int64
	ErrTotal *int64
}

// Record is one parsed line of the event log. The envelope fields are decoded
// once at the boundary; the original fields are kept for API output.
type Record struct {
	Line     int
	TS       int64
	DT       string
	Kind     Kind
	SrcIP    string
	SrcPort  int
	Session  int
	Operator string
	Mode     string
	Level    string
	Sample   Sample
	Summary  Summary

	fields map[string]json.RawMessage
}

var errNotObject = errors.New("record is not a JSON object")

// DecodeRecord parses a single event log line tagged with its 1-based line number.
func DecodeRecord(data []byte, line int) (*Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, errNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errNotObject
	}

	r := &Record{Line: line, fields: fields}
	r.Kind = Kind(strings.ToLower(strings.TrimSpace(r.Label("event"))))
	r.TS = r.intField("ts", 0)
	r.DT = r.Label("dt")
	r.SrcIP = r.Label("src_ip")
	r.SrcPort = int(r.intField("src_port", 0))
	r.Session = int(r.intField("session", -1))
	r.Operator = r.Label("user")
	r.Mode = r.Label("modo", "mode")
	r.Level = r.Label("level")

	r.Sample.Freq = r.floatField("mic_freq")
	r.Sample.Intensity = r.floatField("mic_int")
	if v, ok := r.lookupInt("mic_type"); ok {
		t := int(v)
		r.Sample.Type = &t
	}
	r.Summary.TotalMs = r.optionalInt("total_ms")
	r.Summary.OkTotal = r.optionalInt("ok_total")
	r.Summary.ErrTotal = r.optionalInt("err_total")
	return r, nil
}

// Label returns the first non-blank value among the named fields, trimmed.
// Numbers are rendered as their JSON text.
func (r *Record) Label(names ...string) string {
	for _, name := range names {
		raw, ok := r.fields[name]
		if !ok {
			continue
		}
		if v := strings.TrimSpace(rawString(raw)); v != "" {
			return v
		}
	}
	return ""
}

// Field returns the original JSON value of a field.
func (r *Record) Field(name string) (json.RawMessage, bool) {
	raw, ok := r.fields[name]
	return raw, ok
}

// MarshalJSON emits the original fields plus "_line", with "user" reflecting
// the resolved operator.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.fields)+1)
	for k, v := range r.fields {
		out[k] = v
	}
	if r.Operator != r.Label("user") {
		b, err := json.Marshal(r.Operator)
		if err != nil {
			return nil, err
		}
		out["user"] = b
	}
	out["_line"] = json.RawMessage(strconv.Itoa(r.Line))
	return json.Marshal(out)
}

// UnmarshalJSON reads a record produced by MarshalJSON, taking the line
// number from "_line".
func (r *Record) UnmarshalJSON(data []byte) error {
	dec, err := DecodeRecord(data, 0)
	if err != nil {
		return err
	}
	if v, ok := dec.lookupInt("_line"); ok {
		dec.Line = int(v)
	}
	delete(dec.fields, "_line")
	*r = *dec
	return nil
}

func (r *Record) intField(name string, def int64) int64 {
	if v, ok := r.lookupInt(name); ok {
		return v
	}
	return def
}

func (r *Record) optionalInt(name string) *int64 {
	if v, ok := r.lookupInt(name); ok {
		return &v
	}
	return nil
}

func (r *Record) lookupInt(name string) (int64, bool) {
	raw, ok := r.fields[name]
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil && !math.IsInf(f, 0) {
			return int64(f), true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (r *Record) floatField(name string) *float64 {
	raw, ok := r.fields[name]
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return &f
		}
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) || len(raw) == 0 {
		return ""
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}
