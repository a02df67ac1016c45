package types

import "github.com/google/uuid"

type SessionID string

// NewSessionID generates a random session identifier. Collisions are
// negligible; callers may also supply their own stable IDs.
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}
