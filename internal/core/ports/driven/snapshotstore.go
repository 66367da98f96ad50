package driven

import (
	"context"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// SnapshotStore persists the last-commit snapshot of each document, keyed
// by document UID. Snapshots are the merge base for three-way merges.
//
// A missing snapshot is a valid state: callers degrade to a two-way merge.
// A snapshot that fails its integrity check is surfaced as
// domain.ErrIntegrityFailed and must be treated exactly like a missing one.
type SnapshotStore interface {
	// Read returns the snapshot for uid after verifying its content hash.
	// Returns domain.ErrNotFound if none exists, domain.ErrIntegrityFailed
	// if the stored body does not match its recorded hash.
	Read(ctx context.Context, uid string) (domain.Snapshot, error)

	// Write stores snap under its UID, replacing any previous snapshot.
	// The write is atomic.
	Write(ctx context.Context, snap domain.Snapshot) error

	// Remove deletes the snapshot for uid. Removing a missing snapshot
	// returns domain.ErrNotFound.
	Remove(ctx context.Context, uid string) error

	// List returns the UIDs of all stored snapshots, for garbage collection.
	List(ctx context.Context) ([]string, error)
}
