package memory

import (
	"context"
	"sync"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure ImportIndex implements the interface.
var _ driven.ImportIndex = (*ImportIndex)(nil)

// ImportIndex is an in-memory implementation of driven.ImportIndex.
type ImportIndex struct {
	mu     sync.RWMutex
	byKey  map[domain.BookKey][]string
	byHash map[string][]string
	ready  bool
}

// NewImportIndex creates a new in-memory import index, ready for lookups.
func NewImportIndex() *ImportIndex {
	return &ImportIndex{
		byKey:  make(map[domain.BookKey][]string),
		byHash: make(map[string][]string),
		ready:  true,
	}
}

// PathsForKey returns the vault paths recorded for key, most recent first.
func (i *ImportIndex) PathsForKey(_ context.Context, key domain.BookKey) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return reversed(i.byKey[key]), nil
}

// PathsForHash returns the vault paths recorded for hash, most recent first.
func (i *ImportIndex) PathsForHash(_ context.Context, hash string) ([]string, error) {
	if hash == "" {
		return nil, nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return reversed(i.byHash[hash]), nil
}

// Record associates path with the book's key and content hash.
func (i *ImportIndex) Record(_ context.Context, book domain.BookIdentity, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forgetLocked(path)
	i.byKey[book.Key()] = append(i.byKey[book.Key()], path)
	if book.ContentHash != "" {
		i.byHash[book.ContentHash] = append(i.byHash[book.ContentHash], path)
	}
	return nil
}

// Forget removes every row for path.
func (i *ImportIndex) Forget(_ context.Context, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forgetLocked(path)
	return nil
}

func (i *ImportIndex) forgetLocked(path string) {
	for key, paths := range i.byKey {
		i.byKey[key] = without(paths, path)
	}
	for hash, paths := range i.byHash {
		i.byHash[hash] = without(paths, path)
	}
}

// BeginRebuild clears the index and marks it not ready.
func (i *ImportIndex) BeginRebuild(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byKey = make(map[domain.BookKey][]string)
	i.byHash = make(map[string][]string)
	i.ready = false
	return nil
}

// EndRebuild marks the index ready again.
func (i *ImportIndex) EndRebuild(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ready = true
	return nil
}

// Ready reports whether the index is trustworthy for lookups.
func (i *ImportIndex) Ready(_ context.Context) (bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ready, nil
}

// reversed copies paths newest (most recently appended) first.
func reversed(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for idx, p := range paths {
		out[len(paths)-1-idx] = p
	}
	return out
}

func without(paths []string, path string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != path {
			out = append(out, p)
		}
	}
	return out
}
