package driven

import (
	"context"
	"time"
)

// BackupStore keeps dated copies of documents about to be overwritten, so a
// failed commit can roll the document back and a surprised user can recover
// a pre-merge body by hand.
type BackupStore interface {
	// Backup stores content as a new backup of the document at path and
	// returns a token that Restore accepts.
	Backup(ctx context.Context, path, content string) (string, error)

	// Restore returns the content stored under token.
	// Returns domain.ErrNotFound for an unknown token.
	Restore(ctx context.Context, token string) (string, error)

	// Prune removes backups older than keepFor, and then the oldest backups
	// of each document beyond keepPerDoc. It returns the number removed.
	Prune(ctx context.Context, keepFor time.Duration, keepPerDoc int) (int, error)
}
