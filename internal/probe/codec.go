package probe

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode serializes a datagram to a protobuf Struct for the bus.
func Encode(d Datagram) ([]byte, error) {
	s, err := structpb.NewStruct(normalize(d))
	if err != nil {
		return nil, fmt.Errorf("failed to convert datagram: %w", err)
	}
	return proto.Marshal(s)
}

// Decode parses a bus message back into a datagram. Numbers come back as
// float64.
func Decode(data []byte) (Datagram, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal datagram: %w", err)
	}
	return Datagram(s.AsMap()), nil
}

// normalize rewrites json.Number values, which structpb does not accept.
func normalize(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = normalizeValue(val)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		return normalize(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
