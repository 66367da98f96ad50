package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure VaultStore implements the interface.
var _ driven.VaultStore = (*VaultStore)(nil)

// VaultStore is an in-memory implementation of driven.VaultStore.
type VaultStore struct {
	mu    sync.RWMutex
	files map[string]string

	changes chan driven.Change
}

// NewVaultStore creates a new in-memory vault store.
func NewVaultStore() *VaultStore {
	return &VaultStore{
		files:   make(map[string]string),
		changes: make(chan driven.Change, 64),
	}
}

// Read returns the content of the document at path.
func (s *VaultStore) Read(_ context.Context, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return content, nil
}

// WriteAtomic replaces the document at path.
func (s *VaultStore) WriteAtomic(_ context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return nil
}

// Exists reports whether a document exists at path.
func (s *VaultStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[path]
	return ok, nil
}

// Remove deletes the document at path.
func (s *VaultStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	delete(s.files, path)
	return nil
}

// CreateUnique writes content at a free name derived from stem.
func (s *VaultStore) CreateUnique(_ context.Context, dir, stem, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := stem
	if dir != "" {
		base = strings.Trim(dir, "/") + "/" + stem
	}
	path := base + ".md"
	for n := 1; ; n++ {
		if _, taken := s.files[path]; !taken {
			break
		}
		path = fmt.Sprintf("%s %d.md", base, n)
	}
	s.files[path] = content
	return path, nil
}

// Walk streams the stored markdown paths under dir in lexical order.
func (s *VaultStore) Walk(ctx context.Context, dir string, fn func(path string) error) error {
	s.mu.RLock()
	paths := make([]string, 0, len(s.files))
	prefix := strings.Trim(dir, "/")
	for p := range s.files {
		if prefix == "" || strings.HasPrefix(p, prefix+"/") {
			paths = append(paths, p)
		}
	}
	s.mu.RUnlock()

	sort.Strings(paths)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// Changes returns the change stream. Tests feed it through Emit.
func (s *VaultStore) Changes(_ context.Context) (<-chan driven.Change, error) {
	return s.changes, nil
}

// Emit injects a change event, simulating an external vault mutation.
func (s *VaultStore) Emit(change driven.Change) {
	s.changes <- change
}

// CloseChanges closes the change stream.
func (s *VaultStore) CloseChanges() {
	close(s.changes)
}

// Len reports how many documents the store holds.
func (s *VaultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
