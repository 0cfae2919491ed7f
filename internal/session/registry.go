package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSessionTTL is the maximum inactivity before a session expires.
	DefaultSessionTTL = 5 * time.Minute
	// DefaultCleanupInterval is the default period of the background sweep.
	DefaultCleanupInterval = 1 * time.Minute
)

// Stats summarizes registry contents, computed on demand under the lock.
type Stats struct {
	Total        int
	Connected    int
	Disconnected int
	TTL          time.Duration
}

// Registry owns the id -> session map for one process. All operations
// serialize through a single lock; critical sections are short and never
// block on I/O. Construct one per process and hold the reference — lifecycle
// is tied to the instance, not to package state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	ttl             time.Duration
	cleanupInterval time.Duration

	logger *slog.Logger

	sweepMu      sync.Mutex
	sweepCancel  func()
	sweepDone    chan struct{}
	sweepRunning bool
}

// NewRegistry creates a registry with the given inactivity TTL and the
// default sweep interval. Non-positive values fall back to the defaults.
func NewRegistry(ttl time.Duration) *Registry {
	return NewRegistryWithCleanupInterval(ttl, DefaultCleanupInterval)
}

// NewRegistryWithCleanupInterval creates a registry with a custom background
// sweep interval.
func NewRegistryWithCleanupInterval(ttl, cleanupInterval time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	return &Registry{
		sessions:        make(map[string]*session),
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		logger: slog.Default().With(
			slog.String("component", "session.registry"),
		),
	}
}

// CreateSession allocates a fresh session in the Connected state, optionally
// seeded with prior conversation history, and returns its id.
func (r *Registry) CreateSession(initial ...Message) string {
	id := uuid.NewString()
	now := time.Now()

	s := newSession(id, now)
	for _, msg := range initial {
		s.addMessage(msg, now)
	}
	s.markConnected(now)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Info("Session created", slog.String("session_id", id))
	return id
}

// GetSession returns a snapshot of the session, or nil if it is unknown. A
// session found expired is evicted on the spot (lazy eviction) and reported
// as absent. Absence is a normal outcome, not an error.
func (r *Registry) GetSession(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id, time.Now())
}

// getLocked looks up and lazily evicts under the registry lock.
func (r *Registry) getLocked(id string, now time.Time) *Session {
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}

	if s.isExpired(r.ttl, now) {
		delete(r.sessions, id)
		r.logger.Info("Session expired on retrieval", slog.String("session_id", id))
		return nil
	}

	return s.snapshot()
}

// RestoreSession marks a disconnected session Connected again (resetting the
// attempt counter) and returns its snapshot. Returns nil if the session is
// unknown or already expired; the caller then starts a fresh session.
func (r *Registry) RestoreSession(id string) *Session {
	r.mu.Lock()
	now := time.Now()

	if snap := r.getLocked(id, now); snap == nil {
		r.mu.Unlock()
		return nil
	}

	s := r.sessions[id]
	s.markConnected(now)
	snap := s.snapshot()
	r.mu.Unlock()

	r.logger.Info("Session restored",
		slog.String("session_id", id),
		slog.Int("context_messages", snap.MessageCount()),
	)
	return snap
}

// DisconnectSession marks a session Disconnected, retaining its data for the
// TTL reconnection window. Unknown ids are a logged no-op.
func (r *Registry) DisconnectSession(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		s.markDisconnected(time.Now())
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("Session disconnected", slog.String("session_id", id))
	} else {
		r.logger.Debug("Disconnect for unknown session", slog.String("session_id", id))
	}
}

// TouchSession refreshes the session's activity timestamp without mutating
// content. Unknown ids are a no-op.
func (r *Registry) TouchSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.touch(time.Now())
	}
}

// UpdateSession appends one conversation turn to the session's bounded
// buffer and touches it. Unknown ids are a no-op.
func (r *Registry) UpdateSession(id, role, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.addMessage(Message{Role: role, Content: content}, time.Now())
	}
}

// AssignUser binds a user identifier to the session. The binding is
// immutable: once set it is never overwritten, and the attempt is logged.
func (r *Registry) AssignUser(id, userID string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	alreadySet := ok && s.userID != ""
	if ok && !alreadySet {
		s.userID = userID
	}
	r.mu.Unlock()

	if alreadySet {
		r.logger.Debug("Ignoring user reassignment for session",
			slog.String("session_id", id))
	}
}

// DeleteSession removes a session immediately, bypassing the TTL. This is
// the manual cleanup path; removing an unknown id is a no-op.
func (r *Registry) DeleteSession(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		r.logger.Info("Session deleted", slog.String("session_id", id))
	}
}

// CleanupExpiredSessions removes every session whose inactivity exceeds the
// TTL and returns how many were removed. This is the active sweep; it races
// benignly with lazy eviction since removal is idempotent.
func (r *Registry) CleanupExpiredSessions() int {
	now := time.Now()

	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if s.isExpired(r.ttl, now) {
			delete(r.sessions, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Info("Cleaned up expired sessions", slog.Int("removed", removed))
	}
	return removed
}

// Stats returns session counts by connection state.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Total: len(r.sessions),
		TTL:   r.ttl,
	}
	for _, s := range r.sessions {
		switch s.connectionState {
		case StateConnected:
			stats.Connected++
		case StateDisconnected:
			stats.Disconnected++
		}
	}
	return stats
}

// TTL returns the configured inactivity timeout.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}
