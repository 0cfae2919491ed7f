package session

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanup begins the periodic background sweep that removes expired
// sessions. It is idempotent: starting an already-running sweep is a no-op.
// The sweep stops when ctx is canceled or StopCleanup is called.
func (r *Registry) StartCleanup(ctx context.Context) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	if r.sweepRunning {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	r.sweepCancel = cancel
	r.sweepDone = make(chan struct{})
	r.sweepRunning = true

	go r.runCleanup(sweepCtx)
}

// StopCleanup stops the background sweep and waits for it to finish. Safe to
// call multiple times or when the sweep was never started.
func (r *Registry) StopCleanup() {
	r.sweepMu.Lock()
	if !r.sweepRunning {
		r.sweepMu.Unlock()
		return
	}
	cancel := r.sweepCancel
	done := r.sweepDone
	r.sweepMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// IsCleanupRunning reports whether the background sweep is active.
func (r *Registry) IsCleanupRunning() bool {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()
	return r.sweepRunning
}

// runCleanup performs periodic sweeps until the context is canceled.
func (r *Registry) runCleanup(ctx context.Context) {
	defer func() {
		r.sweepMu.Lock()
		r.sweepRunning = false
		if r.sweepDone != nil {
			close(r.sweepDone)
		}
		r.sweepMu.Unlock()
	}()

	logger := r.logger.With(slog.String("task", "cleanup"))
	logger.InfoContext(ctx, "Session cleanup task started",
		slog.Duration("interval", r.cleanupInterval))

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Session cleanup task stopping")
			return

		case <-ticker.C:
			r.performCleanup(ctx, logger)
		}
	}
}

// performCleanup executes a single sweep pass.
func (r *Registry) performCleanup(ctx context.Context, logger *slog.Logger) {
	startTime := time.Now()
	removed := r.CleanupExpiredSessions()
	duration := time.Since(startTime)

	if removed > 0 {
		logger.InfoContext(ctx, "Sweep removed expired sessions",
			slog.Int("removed", removed),
			slog.Duration("duration", duration),
		)
	}

	stats := r.Stats()
	logger.DebugContext(ctx, "Session stats after sweep",
		slog.Int("total", stats.Total),
		slog.Int("connected", stats.Connected),
		slog.Int("disconnected", stats.Disconnected),
	)
}
