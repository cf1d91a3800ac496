package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/locshare/locshare/internal/queue"
	"github.com/locshare/locshare/pkg/core"
)

type writeOp struct {
	key    string
	rec    core.LocationRecord
	delete bool
}

// Writer drains queued persistence operations on an interval so publishes
// never block on the database.
type Writer struct {
	backend  Backend
	ops      queue.Queue[writeOp]
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastDur  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWriter creates a write-behind writer for the backend.
func NewWriter(backend Backend, interval time.Duration) *Writer {
	return &Writer{
		backend:  backend,
		interval: interval,
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}
}

// EnqueueSave queues a record save.
func (w *Writer) EnqueueSave(key string, rec core.LocationRecord) {
	w.ops.Push(writeOp{key: key, rec: rec})
}

// EnqueueDelete queues a record delete.
func (w *Writer) EnqueueDelete(key string) {
	w.ops.Push(writeOp{key: key, delete: true})
}

// Start runs the drain loop until Stop.
func (w *Writer) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.stopChan:
				w.drain()
				return
			case <-ticker.C:
				w.drain()
			}
		}
	}()
}

// Stop halts the loop after a final drain.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
}

// drain flushes all queued operations to the backend in order.
func (w *Writer) drain() {
	ops := w.ops.GetAndEmpty()
	if len(ops) == 0 {
		return
	}

	start := time.Now()
	for _, op := range ops {
		var err error
		if op.delete {
			err = w.backend.DeleteRecord(op.key)
		} else {
			err = w.backend.SaveRecord(op.key, op.rec)
		}
		if err != nil {
			w.logger.Error("persist failed", "key", op.key, "delete", op.delete, "error", err)
		}
	}

	w.mu.Lock()
	w.lastDur = time.Since(start)
	w.mu.Unlock()
}

// Pending returns the number of queued operations not yet drained.
func (w *Writer) Pending() int {
	return w.ops.Len()
}

// LastWriteDuration returns how long the most recent drain took.
func (w *Writer) LastWriteDuration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastDur
}
