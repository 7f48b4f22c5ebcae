package model

// Notifier delivers operator-facing notices such as stale-session alerts.
type Notifier interface {
	Send(subject, body string) error
}
