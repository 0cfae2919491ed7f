package lifecycle_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotto-voice/sotto/internal/lifecycle"
)

func TestWorker_StartStopJoin(t *testing.T) {
	var iterations atomic.Int64

	w := lifecycle.New("well-behaved", func(w *lifecycle.Worker) {
		for !w.ShouldStop() {
			iterations.Add(1)
			time.Sleep(5 * time.Millisecond)
		}
	})

	w.Start()
	time.Sleep(30 * time.Millisecond)
	require.True(t, w.IsAlive())

	w.Stop()
	require.True(t, w.Join(1*time.Second), "well-behaved loop should join")
	assert.False(t, w.IsAlive())
	assert.Positive(t, iterations.Load())
}

func TestWorker_StartIsIdempotent(t *testing.T) {
	started := make(chan struct{})
	var runs atomic.Int64

	w := lifecycle.New("once", func(w *lifecycle.Worker) {
		runs.Add(1)
		close(started)
		for !w.ShouldStop() {
			time.Sleep(time.Millisecond)
		}
	})

	w.Start()
	<-started
	w.Start() // no-op, must not spawn a second goroutine
	w.Start()

	w.Stop()
	require.True(t, w.Join(1*time.Second))
	assert.Equal(t, int64(1), runs.Load())
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	w := lifecycle.New("stoppable", func(w *lifecycle.Worker) {
		for !w.ShouldStop() {
			time.Sleep(time.Millisecond)
		}
	})

	w.Start()
	w.Stop()
	w.Stop()
	w.Stop()
	require.True(t, w.Join(1*time.Second))
}

func TestWorker_JoinTimeoutOnMisbehavingLoop(t *testing.T) {
	release := make(chan struct{})
	w := lifecycle.New("stubborn", func(_ *lifecycle.Worker) {
		// Ignores the stop signal entirely.
		<-release
	})

	w.Start()
	w.Stop()

	start := time.Now()
	finished := w.Join(500 * time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, finished, "join must report timeout for a loop ignoring stop")
	assert.True(t, w.IsAlive(), "stubborn loop should still be alive")
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	close(release)
	require.True(t, w.Join(1*time.Second))
}

func TestWorker_JoinWithoutStartReturnsTrue(t *testing.T) {
	w := lifecycle.New("never-started", func(_ *lifecycle.Worker) {})
	assert.True(t, w.Join(10*time.Millisecond))
	assert.False(t, w.IsAlive())
}

func TestWorker_PanicTreatedAsCompletion(t *testing.T) {
	w := lifecycle.New("panicky", func(_ *lifecycle.Worker) {
		panic("loop exploded")
	})

	w.Start()
	require.True(t, w.Join(1*time.Second), "panicked worker must still join")
	assert.False(t, w.IsAlive())
}

func TestWorker_ShouldStopReflectsSignal(t *testing.T) {
	w := lifecycle.New("signal-check", func(_ *lifecycle.Worker) {})

	assert.False(t, w.ShouldStop())
	w.Stop()
	assert.True(t, w.ShouldStop())
}

func TestWorker_RunScopedForm(t *testing.T) {
	var loopRan atomic.Bool
	var bodyRan bool

	w := lifecycle.New("scoped", func(w *lifecycle.Worker) {
		loopRan.Store(true)
		for !w.ShouldStop() {
			time.Sleep(time.Millisecond)
		}
	})

	w.Run(func() {
		time.Sleep(10 * time.Millisecond)
		bodyRan = true
	})

	assert.True(t, bodyRan)
	assert.True(t, loopRan.Load())
	assert.False(t, w.IsAlive(), "worker must be stopped and joined when Run returns")
}
