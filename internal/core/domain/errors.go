package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReadFailed indicates a vault or snapshot read failed for a reason
	// other than absence.
	ErrReadFailed = errors.New("read failed")

	// ErrWriteFailed indicates a vault or snapshot write failed. A commit
	// that sees this rolls back from backup.
	ErrWriteFailed = errors.New("write failed")

	// ErrPermissionDenied indicates the filesystem refused access.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIntegrityFailed indicates stored content does not match its
	// recorded hash. Merges degrade to two-way rather than trust the data.
	ErrIntegrityFailed = errors.New("integrity check failed")

	// ErrUIDMismatch indicates a document's frontmatter names a different
	// identity than the operation expected. The document was edited or
	// replaced between locate and commit.
	ErrUIDMismatch = errors.New("uid mismatch")

	// ErrCapabilityUnavailable indicates an optional collaborator (device
	// catalog, import index) is not configured. Lookup tiers that need it
	// are skipped.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrMigrationFailed indicates a snapshot migration could not complete
	// and was rolled back to the legacy layout.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrSessionCancelled indicates the import session was cancelled before
	// the item reached its commit.
	ErrSessionCancelled = errors.New("session cancelled")
)
