package model

import "time"

// SensorState classifies a session by its mean microphone frequency.
type SensorState string

const (
	SensorCalm       SensorState = "CALM"
	SensorNormal     SensorState = "NORMAL"
	SensorAgitated   SensorState = "AGITATED"
	SensorUninformed SensorState = "UNINFORMED"
)

// Uninformed labels an outcome whose record carried neither mode nor level.
const Uninformed = "UNINFORMED"

// SensorSnapshot is the most recent value seen for each sensor field.
type SensorSnapshot struct {
	Freq      *float64 `json:"freq"`
	Intensity *float64 `json:"intensity"`
	Type      *int     `json:"type"`
}

// SensorSummary aggregates the microphone readings of one session.
type SensorSummary struct {
	Count         int            `json:"count"`
	MeanFreq      *float64       `json:"mean_freq"`
	MinFreq       *float64       `json:"min_freq"`
	MaxFreq       *float64       `json:"max_freq"`
	MeanIntensity *float64       `json:"mean_intensity"`
	MinIntensity  *float64       `json:"min_intensity"`
	MaxIntensity  *float64       `json:"max_intensity"`
	Last          SensorSnapshot `json:"last"`
	State         SensorState    `json:"state"`
}

// OutcomeCounts counts OK and ERR records.
type OutcomeCounts struct {
	OK  int `json:"ok"`
	Err int `json:"err"`
}

// SessionSummary is the derived view of one (operator, device, session) group.
// DurationMs is 0 when the duration is unknown.
type SessionSummary struct {
	Operator   string                   `json:"operator"`
	SrcIP      string                   `json:"src_ip"`
	Session    int                      `json:"session"`
	StartedAt  string                   `json:"started_at"`
	EndedAt    string                   `json:"ended_at"`
	SortKey    string                   `json:"sort_key"`
	DurationMs int64                    `json:"duration_ms"`
	OkTotal    int64                    `json:"ok_total"`
	ErrTotal   int64                    `json:"err_total"`
	Complete   bool                     `json:"complete"`
	Mode       string                   `json:"mode"`
	Records    int                      `json:"records"`
	Sensor     SensorSummary            `json:"sensor"`
	ByMode     map[string]OutcomeCounts `json:"by_mode"`
}

// OperatorReport lists the sessions of one operator, most recent first.
type OperatorReport struct {
	Name         string            `json:"name"`
	LastActivity string            `json:"last_activity"`
	Sessions     []*SessionSummary `json:"sessions"`
}

// Report is the output of one regeneration run.
type Report struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Operators   []*OperatorReport `json:"operators"`
}

// SessionCount returns the total number of sessions in the report.
func (r *Report) SessionCount() int {
	n := 0
	for _, op := range r.Operators {
		n += len(op.Sessions)
	}
	return n
}
