// Package session tracks per-connection conversation state across network
// disconnects. A registry owns the session map behind one coarse lock;
// sessions expire after a TTL of inactivity and are removed either lazily on
// read or by the background sweep. Callers only ever receive snapshots,
// never references into registry-owned state.
package session

import "time"

// maxContextMessages bounds the conversation buffer; the oldest entry is
// dropped once a session exceeds it.
const maxContextMessages = 100

// ConnectionState is the binary connection state of a session. There are
// deliberately no intermediate states.
type ConnectionState string

// Connection states.
const (
	StateConnected    ConnectionState = "CONNECTED"
	StateDisconnected ConnectionState = "DISCONNECTED"
)

// Message is one conversation turn.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// session is the registry-internal mutable record. All access is serialized
// by the registry lock.
type session struct {
	id                string
	connectionState   ConnectionState
	reconnectAttempts int
	lastActive        time.Time
	createdAt         time.Time
	userID            string
	context           *contextBuffer
}

func newSession(id string, now time.Time) *session {
	return &session{
		id:              id,
		connectionState: StateDisconnected,
		lastActive:      now,
		createdAt:       now,
		context:         newContextBuffer(maxContextMessages),
	}
}

// isExpired reports whether the session has been inactive longer than ttl.
func (s *session) isExpired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.lastActive) > ttl
}

// touch refreshes lastActive to prevent expiration.
func (s *session) touch(now time.Time) {
	s.lastActive = now
}

// markConnected transitions to Connected and resets the attempt counter.
func (s *session) markConnected(now time.Time) {
	s.connectionState = StateConnected
	s.reconnectAttempts = 0
	s.touch(now)
}

// markDisconnected transitions to Disconnected, preserving all data for a
// possible reconnection within the TTL window.
func (s *session) markDisconnected(now time.Time) {
	s.connectionState = StateDisconnected
	s.touch(now)
}

// addMessage appends a conversation turn and touches the session.
func (s *session) addMessage(msg Message, now time.Time) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	s.context.append(msg)
	s.touch(now)
}

// snapshot produces the caller-facing copy, including a copy of the
// conversation buffer.
func (s *session) snapshot() *Session {
	return &Session{
		ID:                   s.id,
		ConnectionState:      s.connectionState,
		ReconnectionAttempts: s.reconnectAttempts,
		LastActive:           s.lastActive,
		CreatedAt:            s.createdAt,
		UserID:               s.userID,
		Context:              s.context.messages(),
	}
}

// Session is an immutable snapshot of a session at the moment it was read
// from the registry. Mutating it (or its Context slice) has no effect on
// registry state.
type Session struct {
	ID                   string
	ConnectionState      ConnectionState
	ReconnectionAttempts int
	LastActive           time.Time
	CreatedAt            time.Time
	UserID               string
	Context              []Message
}

// RecentContext returns the conversation entries newer than now-window,
// letting callers bound "relevant" history independently of how much is
// retained.
func (s *Session) RecentContext(window time.Duration) []Message {
	cutoff := time.Now().Add(-window)

	recent := make([]Message, 0, len(s.Context))
	for _, msg := range s.Context {
		if msg.Timestamp.After(cutoff) {
			recent = append(recent, msg)
		}
	}
	return recent
}

// MessageCount returns the number of retained conversation entries.
func (s *Session) MessageCount() int {
	return len(s.Context)
}
