package driven

import (
	"context"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// DeviceCatalog reads the e-reader's own book records, used to translate
// strong identifiers into content hashes and to judge hash uniqueness.
// Implementations are strictly read-only: the device database is never ours
// to write.
type DeviceCatalog interface {
	// FindByIdentifier returns the book record matching a strong identifier.
	// Returns domain.ErrNotFound when the device has no such record, and
	// domain.ErrCapabilityUnavailable when the device schema cannot answer
	// identifier queries at all.
	FindByIdentifier(ctx context.Context, id domain.StrongIdentifier) (domain.BookIdentity, error)

	// CountByContentHash returns how many device records share hash.
	// A count of exactly 1 makes the hash a trustworthy lookup key.
	CountByContentHash(ctx context.Context, hash string) (int, error)
}
