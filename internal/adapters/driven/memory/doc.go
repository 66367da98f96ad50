// Package memory provides in-memory implementations of every driven port,
// used by adapter tests and by headless wiring that runs without real
// storage. They honour the same error contracts as the real adapters:
// domain.ErrNotFound for absent entries, domain.ErrIntegrityFailed for
// snapshots that fail verification, and so on.
package memory
