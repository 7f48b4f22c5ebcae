package factory

import (
	"context"
	"testing"

	"CuboTrack/internal/config"
	"CuboTrack/internal/model"
)

type stubWriter struct{ root string }

func (w *stubWriter) Name() string { return "stub" }
func (w *stubWriter) Write(ctx context.Context, r *model.Report) error { return nil }

func TestCreate(t *testing.T) {
	RegisterWriter("stub-test", func(def config.WriterDef) (model.Writer, error) {
		return &stubWriter{root: def.RootPath}, nil
	})

	cfg := config.Default()
	cfg.Report.Writers = []config.WriterDef{
		{Type: "stub-test", Enabled: true, RootPath: "a"},
		{Type: "stub-test", Enabled: false, RootPath: "b"},
	}

	writers, err := Create(cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(writers) != 1 {
		t.Fatalf("Expected 1 enabled writer, got %d", len(writers))
	}
	if w := writers[0].(*stubWriter); w.root != "a" {
		t.Errorf("Expected root 'a', got '%s'", w.root)
	}

	cfg.Report.Writers = []config.WriterDef{{Type: "missing", Enabled: true}}
	if _, err := Create(cfg); err == nil {
		t.Error("Expected an error for an unknown writer type")
	}
}

func TestRegisterWriter_DuplicatePanics(t *testing.T) {
	RegisterWriter("dup-test", func(def config.WriterDef) (model.Writer, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic on duplicate registration")
		}
	}()
	RegisterWriter("dup-test", func(def config.WriterDef) (model.Writer, error) { return nil, nil })
}
