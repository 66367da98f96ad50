package driving

import (
	"context"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// ImportService runs device payloads through the duplicate resolution and
// merge pipeline. This is the primary entry point for CLI and MCP adapters.
type ImportService interface {
	// EnsureID returns the stable UID of the document at doc.Path,
	// assigning one and migrating the document's snapshot if the
	// frontmatter has none or carries a malformed value.
	EnsureID(ctx context.Context, doc domain.DocumentRecord) (string, error)

	// FindBestMatch locates the existing document that best matches the
	// item, analysed against the item's annotations. A nil match means the
	// book is new to the vault.
	FindBestMatch(ctx context.Context, item domain.ImportItem) (*domain.DuplicateMatch, error)

	// ImportBatch runs every item through locate, analyse, resolve, merge
	// and commit, concurrently up to the configured worker count. One
	// item's failure never aborts the others.
	ImportBatch(ctx context.Context, items []domain.ImportItem) (domain.BatchSummary, error)
}
