package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceSession identifies a run of events on one device: the source address
// plus the session number the device assigned. Session numbers are reused
// across reboots, so a DeviceSession alone does not identify an instance.
type DeviceSession struct {
	SrcIP   string
	Session int
}

// DeviceSessionOf returns the device session a record belongs to.
func DeviceSessionOf(r *Record) DeviceSession {
	return DeviceSession{SrcIP: r.SrcIP, Session: r.Session}
}

func (k DeviceSession) String() string {
	return k.SrcIP + "|" + strconv.Itoa(k.Session)
}

// InstanceID returns the identifier of the session instance opened at startLine.
func (k DeviceSession) InstanceID(startLine int) string {
	return fmt.Sprintf("%s|%d", k.String(), startLine)
}

// ParseDeviceSession is the inverse of DeviceSession.String.
func ParseDeviceSession(s string) (DeviceSession, error) {
	i := strings.LastIndex(s, "|")
	if i < 0 {
		return DeviceSession{}, fmt.Errorf("malformed session key %q", s)
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return DeviceSession{}, fmt.Errorf("malformed session number in key %q: %w", s, err)
	}
	return DeviceSession{SrcIP: s[:i], Session: n}, nil
}

// AttributionState is the persisted state of the attribution state machine.
// The machine is ACTIVE while ActiveKey is non-empty.
type AttributionState struct {
	PendingOperator string `json:"pending_operator"`
	LastOperator    string `json:"last_operator"`
	ActiveOperator  string `json:"active_operator"`
	ActiveKey       string `json:"active_key"`
	ActiveInstance  string `json:"active_instance"`
	StartLine       int    `json:"start_line"`
	LastSeenLine    int    `json:"last_seen_line"`
	ActiveSince     string `json:"active_since,omitempty"`
}

// Active reports whether a session is currently open.
func (s *AttributionState) Active() bool {
	return s.ActiveKey != ""
}

// ClearActive returns the machine to IDLE. Pending and last-used operators are kept.
func (s *AttributionState) ClearActive() {
	s.ActiveOperator = ""
	s.ActiveKey = ""
	s.ActiveInstance = ""
	s.StartLine = 0
	s.ActiveSince = ""
}

// SessionMapEntry is one line of the append-only session-map audit log.
// An open entry carries StartLine, a close entry carries StopLine.
type SessionMapEntry struct {
	InstanceID string `json:"instance_id"`
	SrcIP      string `json:"src_ip"`
	Session    int    `json:"session"`
	Operator   string `json:"operator"`
	StartLine  int    `json:"start_line"`
	StopLine   int    `json:"stop_line"`
}

// Merge folds a later entry for the same instance into e.
// Non-empty fields of the later entry win.
func (e *SessionMapEntry) Merge(later *SessionMapEntry) {
	if later.SrcIP != "" {
		e.SrcIP = later.SrcIP
	}
	if later.Session >= 0 {
		e.Session = later.Session
	}
	if later.Operator != "" {
		e.Operator = later.Operator
	}
	if later.StartLine > 0 {
		e.StartLine = later.StartLine
	}
	if later.StopLine > 0 {
		e.StopLine = later.StopLine
	}
}
