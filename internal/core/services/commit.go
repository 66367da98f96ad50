package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/frontmatter"
	"github.com/t5k6/marginalia/internal/locking"
	"github.com/t5k6/marginalia/internal/logger"
)

// MergeFunc computes replacement content for a document from its state as
// read under the document lock. baseline is the verified snapshot for the
// document's current UID, or nil when none is usable. Implementations must
// be pure: no I/O, no lock acquisition.
type MergeFunc func(doc domain.DocumentRecord, baseline *domain.Snapshot) (MergedContent, error)

// MergedContent is the result of a pure merge computation, ready to commit.
type MergedContent struct {
	// Content is the full serialised document, header included.
	Content string

	// Body is the body alone, recorded as the baseline for the next merge.
	Body string

	// Conflicted reports whether Content carries conflict markers.
	Conflicted bool

	// Strategy is the merge path actually taken, after any downgrade.
	Strategy domain.MergeStrategy
}

// Committer owns the backup-write-snapshot sequence that makes document
// updates recoverable. Every mutation of a document and its snapshot
// funnels through here under the document's lock, so concurrent import
// items that resolve to the same document execute strictly in turn.
type Committer struct {
	vault     driven.VaultStore
	snapshots driven.SnapshotStore
	backups   driven.BackupStore
	docLocks  *locking.Arena
	snapLocks *locking.Arena
	now       func() time.Time
}

// NewCommitter creates the commit layer. The two arenas must be the same
// instances the identity resolver uses, or the per-key ordering guarantees
// fall apart.
func NewCommitter(
	vault driven.VaultStore,
	snapshots driven.SnapshotStore,
	backups driven.BackupStore,
	docLocks *locking.Arena,
	snapLocks *locking.Arena,
) *Committer {
	return &Committer{
		vault:     vault,
		snapshots: snapshots,
		backups:   backups,
		docLocks:  docLocks,
		snapLocks: snapLocks,
		now:       time.Now,
	}
}

// UpdateNote rewrites an existing document with the output of merge and
// records the new body as the document's snapshot baseline.
//
// The sequence under the document lock is: re-read the document, verify its
// UID still matches expectUID, read the snapshot baseline, run the pure
// merge, then commit (backup, atomic write, snapshot write). Cancellation
// is honoured before the lock and before every read, but once the commit
// sequence has started it runs to completion so the document and its
// snapshot cannot drift apart. A snapshot write failure rolls the document
// body back from the backup taken at the start of the sequence.
//
//nolint:gocyclo // Orchestration function mirroring the commit protocol step by step
func (c *Committer) UpdateNote(ctx context.Context, path, expectUID string, merge MergeFunc) (domain.DocumentRecord, error) {
	release, err := c.docLocks.Lock(ctx, path)
	if err != nil {
		return domain.DocumentRecord{}, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return domain.DocumentRecord{}, err
	}

	// 1. Re-read under the lock; the caller's view may be stale.
	content, err := c.vault.Read(ctx, path)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("read %s: %w", path, err)
	}
	fm, body, err := frontmatter.Parse(content)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("parse %s: %w", path, err)
	}
	doc := domain.DocumentRecord{Path: path, UID: fm.UID, Body: body, Frontmatter: fm}

	if expectUID != "" && doc.UID != expectUID {
		return domain.DocumentRecord{}, fmt.Errorf("%w: %s carries uid %s, expected %s",
			domain.ErrUIDMismatch, path, doc.UID, expectUID)
	}

	// 2. Fetch the merge baseline. Missing or corrupt snapshots are not
	// errors here; the merge simply runs without a baseline.
	baseline := c.readBaseline(ctx, doc.UID)

	if err := ctx.Err(); err != nil {
		return domain.DocumentRecord{}, err
	}

	// 3. Pure merge computation, no I/O.
	merged, err := merge(doc, baseline)
	if err != nil {
		return domain.DocumentRecord{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.DocumentRecord{}, err
	}

	// 4. Commit sequence. Cancellation is deferred from here on.
	commitCtx := context.WithoutCancel(ctx)

	token, err := c.backups.Backup(commitCtx, path, content)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("backup %s: %w", path, err)
	}

	if err := c.vault.WriteAtomic(commitCtx, path, merged.Content); err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("write %s: %w", path, err)
	}

	if err := c.writeSnapshot(commitCtx, doc.UID, merged.Body); err != nil {
		c.rollback(commitCtx, path, token)
		return domain.DocumentRecord{}, fmt.Errorf("snapshot for %s: %w", doc.UID, err)
	}

	logger.Debug("Committed %s (strategy %s, conflicted=%v)", path, merged.Strategy, merged.Conflicted)

	newFM, newBody, err := frontmatter.Parse(merged.Content)
	if err != nil {
		// The merged content was already written; report the document as
		// best we can reconstruct it.
		newFM, newBody = fm, merged.Body
	}
	return domain.DocumentRecord{Path: path, UID: doc.UID, Body: newBody, Frontmatter: newFM}, nil
}

// CreateNote writes a brand-new document under a collision-free path and
// records its body as the first snapshot baseline. The caller supplies the
// header fields; a UID is generated when absent so the file lands complete
// in a single write.
func (c *Committer) CreateNote(ctx context.Context, dir, stem string, fm domain.Frontmatter, body string) (domain.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.DocumentRecord{}, err
	}
	if fm.UID == "" {
		fm.UID = uuid.NewString()
	}
	content, err := frontmatter.Render(fm, body)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("render header for %s: %w", stem, err)
	}

	commitCtx := context.WithoutCancel(ctx)

	path, err := c.vault.CreateUnique(commitCtx, dir, stem, content)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("create note for %s: %w", stem, err)
	}

	if err := c.writeSnapshot(commitCtx, fm.UID, body); err != nil {
		// The document itself is intact. Without a baseline the next
		// import falls back to a two-way merge, which is the documented
		// degraded path, so the create still counts as a success.
		logger.Warn("Created %s but could not record its baseline: %v", path, err)
	}

	logger.Debug("Created %s with uid %s", path, fm.UID)
	return domain.DocumentRecord{Path: path, UID: fm.UID, Body: body, Frontmatter: fm}, nil
}

// readBaseline loads the verified snapshot for uid, or nil when uid is
// unusable, the snapshot is absent, or it fails its integrity check.
func (c *Committer) readBaseline(ctx context.Context, uid string) *domain.Snapshot {
	if uid == "" {
		return nil
	}
	if _, err := uuid.Parse(uid); err != nil {
		return nil
	}

	release, err := c.snapLocks.Lock(ctx, uid)
	if err != nil {
		return nil
	}
	defer release()

	snap, err := c.snapshots.Read(ctx, uid)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIntegrityFailed):
			logger.Warn("Snapshot for %s failed its integrity check; merging without a baseline", uid)
		case !errors.Is(err, domain.ErrNotFound):
			logger.Debug("Snapshot read for %s: %v", uid, err)
		}
		return nil
	}
	return &snap
}

// writeSnapshot records body as the merge baseline for uid, serialised per
// identifier through the snapshot lock arena.
func (c *Committer) writeSnapshot(ctx context.Context, uid, body string) error {
	if uid == "" {
		return fmt.Errorf("%w: document has no uid to key its snapshot", domain.ErrWriteFailed)
	}

	release, err := c.snapLocks.Lock(ctx, uid)
	if err != nil {
		return err
	}
	defer release()

	snap := domain.NewSnapshot(uid, body, c.now().UTC().Format(time.RFC3339))
	return c.snapshots.Write(ctx, snap)
}

// rollback restores a document body from its pre-commit backup after a
// partial commit failure, leaving document and snapshot mutually consistent
// at their previous state.
func (c *Committer) rollback(ctx context.Context, path, token string) {
	restored, err := c.backups.Restore(ctx, token)
	if err != nil {
		logger.Warn("Could not read backup %s while rolling back %s: %v", token, path, err)
		return
	}
	if err := c.vault.WriteAtomic(ctx, path, restored); err != nil {
		logger.Warn("Could not roll back %s from backup %s: %v", path, token, err)
		return
	}
	logger.Debug("Rolled back %s from backup %s", path, token)
}
