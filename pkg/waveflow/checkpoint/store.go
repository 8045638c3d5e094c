package checkpoint

import "errors"

var (
	// ErrNotFound is returned when no snapshot exists for a session id.
	ErrNotFound = errors.New("checkpoint: snapshot not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("checkpoint: store is closed")
)

// Store persists one snapshot per session id. Save overwrites any
// previous snapshot for the same session.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save writes the serialized snapshot for the session, replacing any
	// existing one.
	Save(sessionID string, data []byte) error

	// Load returns the serialized snapshot for the session, or ErrNotFound.
	Load(sessionID string) ([]byte, error)

	// Delete removes the snapshot for the session. Deleting a session with
	// no snapshot is not an error.
	Delete(sessionID string) error

	// Close releases any resources held by the store.
	Close() error
}
