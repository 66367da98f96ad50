package driven

import (
	"context"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// ImportIndex is the persistent map from book identity keys to the vault
// paths previous imports wrote. It is an accelerator, never an authority:
// every path it returns must be re-verified against the vault before use.
type ImportIndex interface {
	// PathsForKey returns the vault paths recorded for key, most recent
	// first. An empty result is not an error.
	PathsForKey(ctx context.Context, key domain.BookKey) ([]string, error)

	// PathsForHash returns the vault paths recorded for a device content
	// hash, most recent first.
	PathsForHash(ctx context.Context, hash string) ([]string, error)

	// Record associates a path with the book's key and content hash after a
	// successful commit, replacing earlier rows for the same path.
	Record(ctx context.Context, book domain.BookIdentity, path string) error

	// Forget removes every row for path, used when the vault reports the
	// file deleted or renamed away.
	Forget(ctx context.Context, path string) error

	// BeginRebuild clears the index and marks it not ready; lookups during
	// a rebuild must be skipped by callers. EndRebuild marks it ready again.
	BeginRebuild(ctx context.Context) error
	EndRebuild(ctx context.Context) error

	// Ready reports whether the index is trustworthy for lookups.
	Ready(ctx context.Context) (bool, error)
}
