// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the import pipeline to function:
//
//   - VaultStore: Markdown document persistence (the user's vault)
//   - HighlightParser: Annotation extraction from rendered bodies
//   - BodyRenderer: Annotation rendering back into markdown
//   - SnapshotStore: Last-commit snapshots, the three-way merge base
//   - BackupStore: Pre-write document backups for rollback
//   - DuplicatePrompter: Resolution choices for duplicates policy cannot settle
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully:
//
//   - DeviceCatalog: The reader's statistics database. Without it, the
//     identifier and content-hash locator tiers are skipped.
//   - ImportIndex: The persistent book-key index. Without it, lookups fall
//     through to the degraded vault scan.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driven
