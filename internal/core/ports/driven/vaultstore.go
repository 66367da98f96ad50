package driven

import "context"

// ChangeOp classifies a vault change event.
type ChangeOp string

const (
	// ChangeWrite means a file was created or its content modified.
	ChangeWrite ChangeOp = "write"

	// ChangeRemove means a file was deleted or renamed away.
	ChangeRemove ChangeOp = "remove"
)

// Change is one observed mutation of the vault, relative to the vault root.
type Change struct {
	Path string
	Op   ChangeOp
}

// VaultStore persists markdown documents in the user's vault.
// Paths are always relative to the vault root, forward-slashed.
type VaultStore interface {
	// Read returns the full content of the document at path.
	// Returns domain.ErrNotFound if no document exists there.
	Read(ctx context.Context, path string) (string, error)

	// WriteAtomic replaces the document at path with content. The write is
	// atomic: readers see either the old content or the new, never a blend.
	WriteAtomic(ctx context.Context, path, content string) error

	// Exists reports whether a document exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Remove deletes the document at path.
	// Removing a missing document returns domain.ErrNotFound.
	Remove(ctx context.Context, path string) error

	// CreateUnique writes content to a path derived from stem, appending a
	// numeric suffix until the name is free, and returns the path used.
	CreateUnique(ctx context.Context, dir, stem, content string) (string, error)

	// Walk streams the paths of all markdown documents under dir, in
	// lexical order, until fn returns an error or ctx is done.
	Walk(ctx context.Context, dir string, fn func(path string) error) error

	// Changes returns a stream of vault mutations observed outside this
	// process, for index invalidation. The channel closes when the store
	// shuts down. Returns domain.ErrCapabilityUnavailable if the store
	// cannot watch.
	Changes(ctx context.Context) (<-chan Change, error)
}
