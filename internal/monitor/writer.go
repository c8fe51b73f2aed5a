package monitor

import (
	"context"
	"sync"

	"roast-tracker/internal/model"
)

// snapshotWriter persists snapshots one at a time in arrival order so the
// backend always sees increasing timestamps. push never blocks.
type snapshotWriter struct {
	mu      sync.Mutex
	pending []model.SnapshotInput
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newSnapshotWriter() *snapshotWriter {
	return &snapshotWriter{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (w *snapshotWriter) push(in model.SnapshotInput) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = append(w.pending, in)
	w.mu.Unlock()
	w.signal()
	return true
}

// close stops accepting snapshots. run returns once the backlog is written.
func (w *snapshotWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
}

func (w *snapshotWriter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *snapshotWriter) run(ctx context.Context, write func(context.Context, model.SnapshotInput)) {
	defer close(w.done)
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-w.wake:
			case <-ctx.Done():
				return
			}
			continue
		}
		in := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		write(ctx, in)
	}
}

// wait blocks until run has returned or ctx is done.
func (w *snapshotWriter) wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
