package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/core/ports/driving"
	"github.com/t5k6/marginalia/internal/frontmatter"
	"github.com/t5k6/marginalia/internal/locking"
	"github.com/t5k6/marginalia/internal/logger"
)

// MaintenanceConfig carries the housekeeping tunables.
type MaintenanceConfig struct {
	// BackupKeepFor is the retention window for pre-merge backups.
	BackupKeepFor time.Duration

	// BackupKeepPerDoc caps how many backups of one document survive
	// pruning regardless of age.
	BackupKeepPerDoc int
}

// Maintainer performs the housekeeping around imports: snapshot garbage
// collection, backup pruning, index rebuilds, and keeping the index in step
// with vault edits the user makes outside any import.
type Maintainer struct {
	vault     driven.VaultStore
	snapshots driven.SnapshotStore
	backups   driven.BackupStore
	index     driven.ImportIndex
	snapLocks *locking.Arena

	cfg MaintenanceConfig
}

// Ensure Maintainer implements the interface.
var _ driving.MaintenanceService = (*Maintainer)(nil)

// NewMaintainer creates the maintenance service. index is optional; the
// index-related operations report the capability unavailable without it.
func NewMaintainer(
	vault driven.VaultStore,
	snapshots driven.SnapshotStore,
	backups driven.BackupStore,
	index driven.ImportIndex,
	snapLocks *locking.Arena,
	cfg MaintenanceConfig,
) *Maintainer {
	if cfg.BackupKeepFor <= 0 {
		cfg.BackupKeepFor = 30 * 24 * time.Hour
	}
	if cfg.BackupKeepPerDoc < 1 {
		cfg.BackupKeepPerDoc = 5
	}
	return &Maintainer{
		vault:     vault,
		snapshots: snapshots,
		backups:   backups,
		index:     index,
		snapLocks: snapLocks,
		cfg:       cfg,
	}
}

// CollectSnapshots removes snapshots whose UID no longer appears in any
// vault document. A snapshot written by an import that commits while the
// walk is running can be collected wrongly; the cost is a two-way merge on
// that document's next import, never lost highlights.
func (m *Maintainer) CollectSnapshots(ctx context.Context) (int, error) {
	live := make(map[string]struct{})
	err := m.vault.Walk(ctx, "", func(p string) error {
		content, err := m.vault.Read(ctx, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		// A header that does not parse contributes no UID to merges either,
		// so its snapshot is unreachable and safe to collect.
		fm, _, err := frontmatter.Parse(content)
		if err != nil {
			return nil
		}
		if fm.UID != "" {
			live[fm.UID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan vault for live uids: %w", err)
	}

	uids, err := m.snapshots.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}

	removed := 0
	for _, uid := range uids {
		if _, ok := live[uid]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		release, err := m.snapLocks.Lock(ctx, uid)
		if err != nil {
			return removed, err
		}
		err = m.snapshots.Remove(ctx, uid)
		release()

		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Could not remove orphaned snapshot %s: %v", uid, err)
			continue
		}
		logger.Debug("Removed orphaned snapshot %s", uid)
		removed++
	}

	if removed > 0 {
		logger.Info("Collected %d orphaned snapshot(s)", removed)
	}
	return removed, nil
}

// PruneBackups applies the configured retention window and per-document cap.
func (m *Maintainer) PruneBackups(ctx context.Context) (int, error) {
	removed, err := m.backups.Prune(ctx, m.cfg.BackupKeepFor, m.cfg.BackupKeepPerDoc)
	if err != nil {
		return removed, fmt.Errorf("prune backups: %w", err)
	}
	if removed > 0 {
		logger.Info("Pruned %d backup(s) older than %s (keeping %d per document)",
			removed, m.cfg.BackupKeepFor, m.cfg.BackupKeepPerDoc)
	}
	return removed, nil
}

// RebuildIndex repopulates the import index from a full vault walk. The
// index stays marked not-ready until the walk completes, so a concurrent
// import never trusts half an index; on failure it stays not-ready until a
// later rebuild succeeds.
func (m *Maintainer) RebuildIndex(ctx context.Context) (int, error) {
	if m.index == nil {
		return 0, fmt.Errorf("%w: no import index configured", domain.ErrCapabilityUnavailable)
	}

	if err := m.index.BeginRebuild(ctx); err != nil {
		return 0, fmt.Errorf("begin index rebuild: %w", err)
	}

	count := 0
	err := m.vault.Walk(ctx, "", func(p string) error {
		content, err := m.vault.Read(ctx, p)
		if err != nil {
			return nil
		}
		fm, _, err := frontmatter.Parse(content)
		if err != nil || fm.Title == "" {
			return nil
		}
		book := domain.BookIdentity{Title: fm.Title, Authors: fm.Authors}
		if err := m.index.Record(ctx, book, p); err != nil {
			return fmt.Errorf("index %s: %w", p, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("rebuild index: %w", err)
	}

	if err := m.index.EndRebuild(ctx); err != nil {
		return count, fmt.Errorf("finish index rebuild: %w", err)
	}
	logger.Info("Rebuilt import index over %d document(s)", count)
	return count, nil
}

// WatchVault consumes the vault change stream and keeps the index honest
// about renames and deletions. Blocks until ctx is done or the stream
// closes.
func (m *Maintainer) WatchVault(ctx context.Context) error {
	changes, err := m.vault.Changes(ctx)
	if err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}
	logger.Info("Watching the vault for renames and deletions")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			m.applyChange(ctx, change)
		}
	}
}

// applyChange folds one observed vault mutation into the index.
func (m *Maintainer) applyChange(ctx context.Context, change driven.Change) {
	if m.index == nil {
		return
	}

	switch change.Op {
	case driven.ChangeRemove:
		if err := m.index.Forget(ctx, change.Path); err != nil {
			logger.Debug("Forget %s: %v", change.Path, err)
			return
		}
		logger.Debug("Forgot %s after removal", change.Path)

	case driven.ChangeWrite:
		content, err := m.vault.Read(ctx, change.Path)
		if err != nil {
			// Gone again already; treat like a removal.
			_ = m.index.Forget(ctx, change.Path)
			return
		}
		fm, _, err := frontmatter.Parse(content)
		if err != nil || fm.Title == "" {
			return
		}
		book := domain.BookIdentity{Title: fm.Title, Authors: fm.Authors}
		if err := m.index.Record(ctx, book, change.Path); err != nil {
			logger.Debug("Re-index %s: %v", change.Path, err)
		}
	}
}

// Status reports the vault's import bookkeeping state.
func (m *Maintainer) Status(ctx context.Context) (driving.VaultStatus, error) {
	var status driving.VaultStatus
	err := m.vault.Walk(ctx, "", func(p string) error {
		status.Documents++
		content, err := m.vault.Read(ctx, p)
		if err != nil {
			return nil
		}
		fm, _, err := frontmatter.Parse(content)
		if err != nil {
			return nil
		}
		if fm.UID != "" {
			status.WithUID++
		}
		if fm.HasUnresolvedConflicts() {
			status.Conflicted = append(status.Conflicted, p)
		}
		return nil
	})
	if err != nil {
		return driving.VaultStatus{}, fmt.Errorf("walk vault: %w", err)
	}

	uids, err := m.snapshots.List(ctx)
	if err != nil {
		logger.Debug("List snapshots: %v", err)
	} else {
		status.Snapshots = len(uids)
	}

	if m.index != nil {
		ready, err := m.index.Ready(ctx)
		status.IndexReady = err == nil && ready
	}
	return status, nil
}
