package model

import "context"

// Writer defines a generic interface for persisting a regenerated report.
type Writer interface {
	// Write persists the report. Implementations must honor ctx cancellation
	// where their backend allows it.
	Write(ctx context.Context, report *Report) error

	// Name identifies the writer in logs and metrics.
	Name() string
}
