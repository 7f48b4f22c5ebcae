package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"CuboTrack/internal/metrics"
	"CuboTrack/internal/model"
)

// DefaultTailMax bounds a tail batch when the caller passes no limit.
const DefaultTailMax = 2000

// TailBatch is the result of one tail read.
type TailBatch struct {
	Records    []*model.Record
	NextCursor int
	Skipped    int
}

// EventLog is the append-only JSONL file the datagram listener writes to.
// Readers never lock: each read consumes whatever is on disk at call time.
type EventLog struct {
	path string
	mu   sync.Mutex
}

// NewEventLog returns an event log backed by the file at path.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// Path returns the backing file path.
func (l *EventLog) Path() string {
	return l.path
}

// Append writes fields as one JSON line. Appends are serialized within the process.
func (l *EventLog) Append(fields map[string]any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create event log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// ReadTail returns up to max records strictly after line `after`, in file order.
// Blank and malformed lines are skipped and never returned. NextCursor is the
// line of the last returned record, or after when nothing was returned.
// A missing file yields an empty batch.
func (l *EventLog) ReadTail(after, max int) (*TailBatch, error) {
	if max <= 0 {
		max = DefaultTailMax
	}
	batch := &TailBatch{NextCursor: after}

	err := l.scan(func(line int, data []byte) bool {
		if line <= after {
			return true
		}
		rec, ok := decodeLine(data, line)
		if !ok {
			if len(bytes.TrimSpace(data)) > 0 {
				batch.Skipped++
			}
			return true
		}
		batch.Records = append(batch.Records, rec)
		batch.NextCursor = line
		return len(batch.Records) < max
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordsRead.Add(float64(len(batch.Records)))
	metrics.MalformedLines.Add(float64(batch.Skipped))
	return batch, nil
}

// ReadAll returns every parseable record in the log.
func (l *EventLog) ReadAll() ([]*model.Record, error) {
	var records []*model.Record
	skipped := 0
	err := l.scan(func(line int, data []byte) bool {
		rec, ok := decodeLine(data, line)
		if ok {
			records = append(records, rec)
		} else if len(bytes.TrimSpace(data)) > 0 {
			skipped++
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	metrics.MalformedLines.Add(float64(skipped))
	return records, nil
}

func decodeLine(data []byte, line int) (*model.Record, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false
	}
	rec, err := model.DecodeRecord(data, line)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// scan calls fn for every line with its 1-based number until fn returns false.
func (l *EventLog) scan(fn func(line int, data []byte) bool) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	line := 0
	for {
		data, err := r.ReadBytes('\n')
		if len(data) > 0 {
			line++
			if !fn(line, data) {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read event log: %w", err)
		}
	}
}
