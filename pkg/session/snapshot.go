package session

import (
	"context"
	"encoding/json"
	"time"
)

// Snapshot is the persisted last-known resolved state of a visitor. A
// nil User means the visitor was confirmed anonymous. Snapshots are a
// reload hint only; they never substitute for a real verification.
type Snapshot struct {
	// User is the last resolved identity, nil for anonymous.
	User *User `json:"user,omitempty"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// Version is the serialization format version.
	Version int `json:"version"`
}

// CurrentSnapshotVersion is the snapshot wire format version.
// Increment on breaking changes; older versions are discarded on load.
const CurrentSnapshotVersion = 1

// SnapshotStore persists visitor snapshots keyed by session ID.
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save persists a snapshot, overwriting any existing one.
	Save(ctx context.Context, sid string, snap Snapshot) error

	// Load returns the snapshot for sid, or (nil, nil) when absent,
	// expired, or written by an incompatible version.
	Load(ctx context.Context, sid string) (*Snapshot, error)

	// Delete removes a snapshot. Absent snapshots are not an error.
	Delete(ctx context.Context, sid string) error

	// Close releases backend resources.
	Close() error
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	snap.Version = CurrentSnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}
	if snap.User != nil {
		// Copy so the caller's user is never mutated.
		u := *snap.User
		u.RawRole = u.Role.String()
		snap.User = &u
	}
	return json.Marshal(snap)
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Version != CurrentSnapshotVersion {
		return nil, nil
	}
	if snap.User != nil {
		role, err := ParseRole(snap.User.RawRole)
		if err != nil {
			// A snapshot with a role this build does not know is
			// useless as a hint; drop it.
			return nil, nil
		}
		snap.User.Role = role
	}
	return &snap, nil
}
