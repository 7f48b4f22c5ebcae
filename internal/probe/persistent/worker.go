package persistent

import (
	"log"
	"sync"

	"CuboTrack/internal/metrics"
)

// Appender is the sink the worker writes to, normally the event log.
type Appender interface {
	Append(fields map[string]any) error
}

// Worker is the single goroutine that owns event log writes. Producers hand
// it datagrams through a buffered channel.
type Worker struct {
	sink     Appender
	queue    chan map[string]any
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates and starts an append worker.
func NewWorker(sink Appender, bufferSize int) *Worker {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	w := &Worker{
		sink:     sink,
		queue:    make(chan map[string]any, bufferSize),
		stopChan: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()
	log.Printf("[persist] Append worker started, buffer size %d", bufferSize)
	return w
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case fields := <-w.queue:
			w.write(fields)
		case <-w.stopChan:
			w.drain()
			return
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case fields := <-w.queue:
			w.write(fields)
		default:
			return
		}
	}
}

func (w *Worker) write(fields map[string]any) {
	if err := w.sink.Append(fields); err != nil {
		log.Printf("[persist] Failed to append datagram: %v", err)
	}
}

// Enqueue queues a datagram for writing. It never blocks: when the queue is
// full or the worker is stopped the datagram is dropped and false returned.
func (w *Worker) Enqueue(fields map[string]any) bool {
	select {
	case <-w.stopChan:
		return false
	default:
	}

	select {
	case w.queue <- fields:
		return true
	default:
		metrics.DatagramsDropped.Inc()
		log.Println("[persist] Queue is full, dropping datagram.")
		return false
	}
}

// Stop writes whatever is still queued and waits for the worker to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	log.Println("[persist] Append worker stopped.")
}
