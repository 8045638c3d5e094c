// Package checkpoint provides persistent session snapshots for pause/resume
// and crash recovery. One snapshot per session id, last write wins; no
// snapshot history is retained.
package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current snapshot format version.
// Increment on breaking changes to the snapshot structure.
const Version = 1

// Snapshot is the persisted state of a session, written after each wave
// merges. It contains everything needed to resume the session without
// re-running completed nodes.
type Snapshot struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	// State is the merged session state, JSON-encoded.
	State json.RawMessage `json:"state"`

	// Pass counts cycle restarts; the state may additionally carry its own
	// loop-field counter incremented by a decision node.
	Pass int `json:"pass"`

	// Completed is the append-only log of node names across all passes.
	Completed []string `json:"completed"`

	// PassCompleted is the subset of Completed belonging to the current pass;
	// it rebuilds fan-in readiness counts on resume.
	PassCompleted []string `json:"pass_completed"`

	// Frontier is the ready set the next wave would run. Empty means the
	// session already reached the terminal marker.
	Frontier []string `json:"frontier"`
}

// New creates a snapshot. State must already be JSON-encoded.
func New(sessionID string, stateJSON []byte, pass int, completed, passCompleted, frontier []string) *Snapshot {
	return &Snapshot{
		Version:       Version,
		SessionID:     sessionID,
		Timestamp:     time.Now().UTC(),
		State:         stateJSON,
		Pass:          pass,
		Completed:     append([]string(nil), completed...),
		PassCompleted: append([]string(nil), passCompleted...),
		Frontier:      append([]string(nil), frontier...),
	}
}

// Marshal serializes a snapshot to JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal deserializes a snapshot from JSON.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
