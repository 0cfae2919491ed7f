// Package lifecycle provides the cooperative background-worker primitive the
// rest of the service builds its long-running loops on.
//
// A Worker wraps a single goroutine around a caller-supplied loop function.
// The loop must poll ShouldStop periodically and return when it reports true;
// stopping is cooperative, never preemptive. Join waits for the loop with a
// bounded timeout and reports the outcome as a boolean rather than an error,
// leaving escalation to the owner.
package lifecycle

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultJoinTimeout is the join timeout used by the scoped Run form.
const DefaultJoinTimeout = 5 * time.Second

// workerSeq generates names for workers created without one.
var workerSeq atomic.Uint64

// Worker wraps one background goroutine with a cooperative stop signal,
// idempotent start/stop, and a bounded join.
type Worker struct {
	name   string
	loop   func(*Worker)
	logger *slog.Logger

	stopFlag atomic.Bool

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// New creates a worker that will run loop in a background goroutine once
// started. The loop must poll ShouldStop and return promptly when it reports
// true. An empty name gets a generated one.
func New(name string, loop func(*Worker)) *Worker {
	if name == "" {
		name = fmt.Sprintf("worker-%d", workerSeq.Add(1))
	}

	return &Worker{
		name: name,
		loop: loop,
		logger: slog.Default().With(
			slog.String("component", "lifecycle"),
			slog.String("worker", name),
		),
	}
}

// Name returns the worker's name.
func (w *Worker) Name() string {
	return w.name
}

// Start begins execution in a background goroutine. Calling Start on a
// worker that is already running (or has already finished) is a logged no-op;
// a finished worker is not restartable.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		w.logger.Warn("Start called on already-started worker")
		return
	}

	w.started = true
	w.done = make(chan struct{})

	go w.run()
}

// run executes the loop with panic isolation. A panic in the loop body is
// logged with its stack and treated as normal completion; it never re-raises
// into the owner.
func (w *Worker) run() {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Worker loop panicked",
				slog.Any("panic", r),
				slog.String("stack_trace", string(debug.Stack())),
			)
		}
	}()

	w.logger.Debug("Worker started")
	w.loop(w)
	w.logger.Debug("Worker completed")
}

// Stop signals the loop to stop. It does not wait; pair with Join for a
// bounded shutdown. Repeated calls are safe and have no additional effect.
func (w *Worker) Stop() {
	if w.stopFlag.CompareAndSwap(false, true) {
		w.logger.Debug("Worker stop requested")
	}
}

// ShouldStop is the non-blocking check the loop body polls.
func (w *Worker) ShouldStop() bool {
	return w.stopFlag.Load()
}

// Join blocks until the worker finishes or timeout elapses. It returns
// whether the worker actually finished; a timeout is reported, not raised.
// Joining a worker that never started returns true immediately.
func (w *Worker) Join(timeout time.Duration) bool {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done == nil {
		return true
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		w.logger.Warn("Worker did not finish within join timeout",
			slog.Duration("timeout", timeout))
		return false
	}
}

// IsAlive reports whether the worker goroutine is currently running.
func (w *Worker) IsAlive() bool {
	w.mu.Lock()
	started := w.started
	done := w.done
	w.mu.Unlock()

	if !started {
		return false
	}

	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Run is the scoped-use form: it starts the worker, executes fn, then stops
// and joins with DefaultJoinTimeout. A worker still alive afterward is a
// likely orphan; that is logged as an error but is not fatal.
func (w *Worker) Run(fn func()) {
	w.Start()
	defer func() {
		w.Stop()
		if !w.Join(DefaultJoinTimeout) {
			w.logger.Error("Worker failed to join after scoped run; goroutine may be orphaned")
		}
	}()

	fn()
}
