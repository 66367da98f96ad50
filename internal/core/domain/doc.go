// Package domain defines the core business entities for marginalia.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - BookIdentity: identity data for one incoming book
//   - Annotation: a single highlight with its position on the device
//   - DocumentRecord: an existing vault document with its embedded UID
//   - Snapshot: the last-merged body for a UID (three-way merge ancestor)
//   - DuplicateMatch: the classified relationship between incoming
//     annotations and an existing document
//   - MergeOutcome: the closed result union of a duplicate resolution
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
