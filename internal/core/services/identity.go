package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/frontmatter"
	"github.com/t5k6/marginalia/internal/locking"
	"github.com/t5k6/marginalia/internal/logger"
)

// IdentityResolver assigns and repairs the stable UID embedded in each
// document's frontmatter. A UID, once valid, never changes; a missing or
// malformed one is replaced, and any snapshot stored under the malformed
// value is migrated to the replacement.
type IdentityResolver struct {
	vault     driven.VaultStore
	snapshots driven.SnapshotStore
	docLocks  *locking.Arena
	snapLocks *locking.Arena
}

// NewIdentityResolver creates an identity resolver. The two arenas must be
// the same instances the commit layer uses, or the per-document and per-UID
// serialisation guarantees do not hold.
func NewIdentityResolver(
	vault driven.VaultStore,
	snapshots driven.SnapshotStore,
	docLocks *locking.Arena,
	snapLocks *locking.Arena,
) *IdentityResolver {
	return &IdentityResolver{
		vault:     vault,
		snapshots: snapshots,
		docLocks:  docLocks,
		snapLocks: snapLocks,
	}
}

// EnsureID returns the document's stable UID, assigning one if needed.
// Takes the document lock; callers already holding it must use
// ensureIDLocked instead.
func (r *IdentityResolver) EnsureID(ctx context.Context, doc domain.DocumentRecord) (string, error) {
	release, err := r.docLocks.Lock(ctx, doc.Path)
	if err != nil {
		return "", err
	}
	defer release()

	return r.ensureIDLocked(ctx, doc.Path)
}

// ensureIDLocked implements EnsureID under an already-held document lock.
func (r *IdentityResolver) ensureIDLocked(ctx context.Context, path string) (string, error) {
	// 1. Read the current header state under the lock; the caller's copy
	// may be stale.
	content, err := r.vault.Read(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", path, err)
	}
	fm, body, err := frontmatter.Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse frontmatter of %s: %w", path, err)
	}

	// 2. A valid UID is final.
	if fm.UID != "" {
		if _, parseErr := uuid.Parse(fm.UID); parseErr == nil {
			return fm.UID, nil
		}
	}

	oldUID := fm.UID
	newUID := uuid.NewString()

	// 3. First assignment: no old identity, nothing to migrate.
	if oldUID == "" {
		fm.UID = newUID
		rendered, err := frontmatter.Render(fm, body)
		if err != nil {
			return "", fmt.Errorf("render header for %s: %w", path, err)
		}
		if err := r.vault.WriteAtomic(ctx, path, rendered); err != nil {
			return "", fmt.Errorf("commit uid header for %s: %w", path, err)
		}
		logger.Debug("Assigned uid %s to %s", newUID, path)
		return newUID, nil
	}

	// 4. Malformed identity: replace it and migrate its snapshot.
	logger.Info("Replacing malformed uid %q on %s", oldUID, path)
	return r.migrate(ctx, path, fm, body, oldUID, newUID)
}

// migrate moves the snapshot stored under a malformed UID to the new UID
// using the copy-first, commit, delete-old protocol:
//
//  1. read the old snapshot, if any
//  2. write a copy under the new UID
//  3. commit the header rewrite
//  4. only after the commit sticks, delete the old snapshot
//
// A failed commit rolls back the copy so no snapshot exists under a UID no
// document carries. A failed step 4 merely orphans the old snapshot, which
// garbage collection reclaims; lookups go by current UID only, so it can
// never feed a wrong merge.
func (r *IdentityResolver) migrate(
	ctx context.Context,
	path string,
	fm domain.Frontmatter,
	body, oldUID, newUID string,
) (string, error) {
	releaseSnaps, err := r.snapLocks.LockPair(ctx, oldUID, newUID)
	if err != nil {
		return "", err
	}
	defer releaseSnaps()

	// 1. Read the old snapshot. A corrupt one is not a usable baseline, so
	// there is nothing worth migrating.
	oldSnap, err := r.snapshots.Read(ctx, oldUID)
	hasOld := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrIntegrityFailed) {
		return "", fmt.Errorf("%w: read snapshot %s: %w", domain.ErrMigrationFailed, oldUID, err)
	}

	// 2. Copy it under the new UID.
	if hasOld {
		copySnap := oldSnap
		copySnap.UID = newUID
		if err := r.snapshots.Write(ctx, copySnap); err != nil {
			return "", fmt.Errorf("%w: copy snapshot to %s: %w", domain.ErrMigrationFailed, newUID, err)
		}
	}

	// 3. Commit the header rewrite.
	fm.UID = newUID
	rendered, renderErr := frontmatter.Render(fm, body)
	if renderErr == nil {
		renderErr = r.vault.WriteAtomic(ctx, path, rendered)
	}
	if renderErr != nil {
		if hasOld {
			if rmErr := r.snapshots.Remove(ctx, newUID); rmErr != nil {
				logger.Warn("Rollback of snapshot %s failed: %v", newUID, rmErr)
			}
		}
		return "", fmt.Errorf("%w: commit header rewrite for %s: %w", domain.ErrMigrationFailed, path, renderErr)
	}

	// 4. Delete the old snapshot.
	if hasOld {
		if err := r.snapshots.Remove(ctx, oldUID); err != nil {
			logger.Warn("Old snapshot %s orphaned after migration: %v", oldUID, err)
		}
	}

	logger.Debug("Migrated uid %q -> %s on %s", oldUID, newUID, path)
	return newUID, nil
}
