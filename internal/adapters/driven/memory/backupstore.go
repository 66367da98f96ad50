package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure BackupStore implements the interface.
var _ driven.BackupStore = (*BackupStore)(nil)

// BackupStore is an in-memory implementation of driven.BackupStore.
type BackupStore struct {
	mu      sync.Mutex
	next    int
	entries map[string]backupEntry

	// Now is the clock Prune compares against, overridable in tests.
	Now func() time.Time
}

type backupEntry struct {
	path    string
	content string
	at      time.Time
}

// NewBackupStore creates a new in-memory backup store.
func NewBackupStore() *BackupStore {
	return &BackupStore{
		entries: make(map[string]backupEntry),
		Now:     time.Now,
	}
}

// Backup stores content as a new backup of the document at path.
func (s *BackupStore) Backup(_ context.Context, path, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	token := fmt.Sprintf("backup-%d", s.next)
	s.entries[token] = backupEntry{path: path, content: content, at: s.Now()}
	return token, nil
}

// Restore returns the content stored under token.
func (s *BackupStore) Restore(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return "", fmt.Errorf("%w: backup %s", domain.ErrNotFound, token)
	}
	return entry.content, nil
}

// Prune removes backups older than keepFor, then the oldest backups of
// each document beyond keepPerDoc.
func (s *BackupStore) Prune(_ context.Context, keepFor time.Duration, keepPerDoc int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type aged struct {
		token string
		at    time.Time
	}
	byPath := make(map[string][]aged)
	for token, entry := range s.entries {
		byPath[entry.path] = append(byPath[entry.path], aged{token: token, at: entry.at})
	}

	cutoff := s.Now().Add(-keepFor)
	removed := 0
	for _, backups := range byPath {
		sort.Slice(backups, func(i, j int) bool { return backups[i].at.After(backups[j].at) })
		for i, b := range backups {
			if !b.at.Before(cutoff) && i < keepPerDoc {
				continue
			}
			delete(s.entries, b.token)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many backups the store holds.
func (s *BackupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
