// Package session tracks the client's current belief about who the
// visitor is.
//
// The centerpiece is [Store], the single source of truth for the
// authenticated user, its lifecycle status, and the last failure. One
// store instance is owned by one application load; guards and UI
// subscribe to it and are notified synchronously after every state
// transition, so a guard never acts on stale state.
//
// The store serializes its own transitions with a generation counter:
// an operation that starts while an earlier one is still in flight
// supersedes it, and the earlier operation's eventual resolution is
// discarded. CheckAuth additionally de-duplicates itself: concurrent
// callers share a single verification request.
//
// Snapshot persistence ([SnapshotStore], with memory and Redis
// backends) and cross-tab propagation ([SyncHub]) are optional
// attachments; the store works without either.
package session
