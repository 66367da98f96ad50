package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure SnapshotStore implements the interface.
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore is an in-memory implementation of driven.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.Snapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[string]domain.Snapshot)}
}

// Read returns the snapshot for uid after verifying its content hash.
func (s *SnapshotStore) Read(_ context.Context, uid string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[uid]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, uid)
	}
	if !snap.Verify() {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s", domain.ErrIntegrityFailed, uid)
	}
	return snap, nil
}

// Write stores snap under its UID.
func (s *SnapshotStore) Write(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.UID] = snap
	return nil
}

// Remove deletes the snapshot for uid.
func (s *SnapshotStore) Remove(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snaps[uid]; !ok {
		return fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, uid)
	}
	delete(s.snaps, uid)
	return nil
}

// List returns the UIDs of all stored snapshots in sorted order.
func (s *SnapshotStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uids := make([]string, 0, len(s.snaps))
	for uid := range s.snaps {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids, nil
}

// Corrupt flips the stored hash for uid so the next Read fails its
// integrity check, for downgrade-path tests.
func (s *SnapshotStore) Corrupt(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.snaps[uid]; ok {
		snap.ContentHash = "sha256:corrupted"
		s.snaps[uid] = snap
	}
}
