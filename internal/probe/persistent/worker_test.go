package persistent

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"CuboTrack/internal/store"
)

func TestWorker_AppendsInOrder(t *testing.T) {
	events := store.NewEventLog(filepath.Join(t.TempDir(), "udp_log.jsonl"))
	w := NewWorker(events, 16)

	for i := 0; i < 10; i++ {
		if !w.Enqueue(map[string]any{"event": "ok", "session": 1, "n": i}) {
			t.Fatalf("Enqueue %d was dropped", i)
		}
	}
	w.Stop()

	records, err := events.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("Expected 10 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Line != i+1 {
			t.Errorf("Expected line %d, got %d", i+1, r.Line)
		}
	}
}

type blockingSink struct {
	mu      sync.Mutex
	release chan struct{}
	entered chan struct{}
	n       int
}

func (b *blockingSink) Append(fields map[string]any) error {
	b.mu.Lock()
	b.n++
	first := b.n == 1
	b.mu.Unlock()
	if first {
		close(b.entered)
		<-b.release
	}
	return nil
}

func TestWorker_DropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), entered: make(chan struct{})}
	w := NewWorker(sink, 1)

	w.Enqueue(map[string]any{"n": 0})
	<-sink.entered // worker is now stuck on the first datagram

	if !w.Enqueue(map[string]any{"n": 1}) {
		t.Fatal("Expected second datagram to fit in the buffer")
	}
	if w.Enqueue(map[string]any{"n": 2}) {
		t.Fatal("Expected third datagram to be dropped")
	}

	close(sink.release)
	w.Stop()
	if sink.n != 2 {
		t.Errorf("Expected 2 appends, got %d", sink.n)
	}
	if w.Enqueue(map[string]any{"n": 3}) {
		t.Error("Expected Enqueue after Stop to be rejected")
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Append(map[string]any) error {
	f.calls++
	return errors.New("disk full")
}

func TestWorker_KeepsRunningAfterAppendError(t *testing.T) {
	sink := &failingSink{}
	w := NewWorker(sink, 4)
	w.Enqueue(map[string]any{"n": 0})
	w.Enqueue(map[string]any{"n": 1})
	w.Stop()
	if sink.calls != 2 {
		t.Errorf("Expected 2 append attempts, got %d", sink.calls)
	}
}
