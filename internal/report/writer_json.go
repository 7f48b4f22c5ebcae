package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/factory"
	"CuboTrack/internal/model"
)

func init() {
	factory.RegisterWriter("json", NewJSONWriter)
}

// SummaryFile is the document written to summary.json.
type SummaryFile struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt string                  `json:"generated_at"`
	Operators   int                     `json:"operators"`
	Sessions    int                     `json:"sessions"`
	Report      []*model.OperatorReport `json:"report"`
}

// JSONWriter dumps the whole report as one machine-readable file.
type JSONWriter struct {
	root string
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(def config.WriterDef) (model.Writer, error) {
	root := def.RootPath
	if root == "" {
		root = "reports"
	}
	return &JSONWriter{root: root}, nil
}

// Name identifies the writer.
func (w *JSONWriter) Name() string {
	return "json"
}

// Write replaces summary.json under the writer root.
func (w *JSONWriter) Write(ctx context.Context, report *model.Report) error {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	summary := SummaryFile{
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt.UTC().Format(time.RFC3339),
		Operators:   len(report.Operators),
		Sessions:    report.SessionCount(),
		Report:      report.Operators,
	}
	if summary.Report == nil {
		summary.Report = []*model.OperatorReport{}
	}

	path := filepath.Join(w.root, "summary.json")
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close summary file: %w", err)
	}
	return os.Rename(tmp, path)
}
