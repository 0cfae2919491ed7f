package session

// Registrar is the transport-facing surface of the session registry. The
// WebSocket handler creates a session on connect, restores it on reconnect,
// and marks it disconnected when the socket drops; the STT/LLM layer appends
// conversation turns through UpdateSession.
type Registrar interface {
	// CreateSession allocates a fresh Connected session and returns its id.
	CreateSession(initial ...Message) string

	// GetSession returns a snapshot, or nil if unknown or expired.
	GetSession(id string) *Session

	// RestoreSession reconnects a session within its TTL window.
	RestoreSession(id string) *Session

	// DisconnectSession marks a session Disconnected, retaining its data.
	DisconnectSession(id string)

	// TouchSession refreshes the activity timestamp.
	TouchSession(id string)

	// UpdateSession appends one conversation turn.
	UpdateSession(id, role, content string)

	// DeleteSession removes a session immediately, bypassing the TTL.
	DeleteSession(id string)
}
