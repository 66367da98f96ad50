package driving

import "context"

// VaultStatus summarises the vault's import bookkeeping for display.
type VaultStatus struct {
	// Documents is the number of markdown documents in the highlights folder.
	Documents int

	// WithUID is how many of them carry a stable identity.
	WithUID int

	// Snapshots is the number of stored last-commit snapshots.
	Snapshots int

	// Conflicted lists documents flagged with unresolved merge conflicts.
	Conflicted []string

	// IndexReady reports whether the import index is trustworthy.
	IndexReady bool
}

// MaintenanceService performs the housekeeping that keeps the import
// bookkeeping consistent with a vault the user edits freely.
type MaintenanceService interface {
	// CollectSnapshots removes snapshots whose UID no longer appears in any
	// vault document, returning the number removed.
	CollectSnapshots(ctx context.Context) (int, error)

	// PruneBackups applies the configured retention window and per-document
	// cap to stored backups, returning the number removed.
	PruneBackups(ctx context.Context) (int, error)

	// RebuildIndex repopulates the import index from a full vault walk,
	// returning the number of documents indexed. The index reports not
	// ready for the duration.
	RebuildIndex(ctx context.Context) (int, error)

	// WatchVault consumes the vault change stream and keeps the import
	// index consistent with renames and deletions. Blocks until ctx is done
	// or the stream closes.
	WatchVault(ctx context.Context) error

	// Status reports the vault's current import bookkeeping state.
	Status(ctx context.Context) (VaultStatus, error)
}
