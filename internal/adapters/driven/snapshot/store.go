// Package snapshot persists last-commit snapshots as one JSON file per
// document UID. JSON keeps the integrity hash verifiable without touching
// the markdown, and a file per UID keeps migration and garbage collection
// single-file operations.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.SnapshotStore = (*Store)(nil)

// Store keeps snapshots under a dedicated directory, named "<uid>.json".
type Store struct {
	dir string
}

// entry is the on-disk shape of one snapshot.
type entry struct {
	UID         string `json:"uid"`
	ContentHash string `json:"content_hash"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
}

// NewStore opens the snapshot directory, creating it if needed. A directory
// that cannot be created or written blocks all merging, so the probe
// happens here rather than on the first commit.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: snapshot directory %s: %v", domain.ErrCapabilityUnavailable, dir, err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot directory %s is not writable: %v", domain.ErrCapabilityUnavailable, dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Store{dir: dir}, nil
}

// Read loads and verifies the snapshot for uid.
func (s *Store) Read(_ context.Context, uid string) (domain.Snapshot, error) {
	path, err := s.pathFor(uid)
	if err != nil {
		return domain.Snapshot{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, uid)
		}
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s: %v", domain.ErrReadFailed, uid, err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Undecodable is indistinguishable from tampered.
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s is not valid JSON: %v", domain.ErrIntegrityFailed, uid, err)
	}

	snap := domain.Snapshot{UID: e.UID, ContentHash: e.ContentHash, Body: e.Body, CreatedAt: e.CreatedAt}
	if e.UID != uid {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot file %s records uid %s", domain.ErrIntegrityFailed, uid, e.UID)
	}
	if !snap.Verify() {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s body does not match its hash", domain.ErrIntegrityFailed, uid)
	}
	return snap, nil
}

// Write stores snap atomically under its UID.
func (s *Store) Write(_ context.Context, snap domain.Snapshot) error {
	path, err := s.pathFor(snap.UID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry{
		UID:         snap.UID,
		ContentHash: snap.ContentHash,
		Body:        snap.Body,
		CreatedAt:   snap.CreatedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode snapshot %s: %v", domain.ErrWriteFailed, snap.UID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snap-*")
	if err != nil {
		return fmt.Errorf("%w: temp snapshot for %s: %v", domain.ErrWriteFailed, snap.UID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write snapshot %s: %v", domain.ErrWriteFailed, snap.UID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close snapshot %s: %v", domain.ErrWriteFailed, snap.UID, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename snapshot %s: %v", domain.ErrWriteFailed, snap.UID, err)
	}
	return nil
}

// Remove deletes the snapshot for uid.
func (s *Store) Remove(_ context.Context, uid string) error {
	path, err := s.pathFor(uid)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, uid)
		}
		return fmt.Errorf("%w: remove snapshot %s: %v", domain.ErrWriteFailed, uid, err)
	}
	return nil
}

// List returns every stored UID in sorted order. Files that are not
// "<uuid>.json" are someone else's and are left alone.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list snapshots: %v", domain.ErrReadFailed, err)
	}

	var uids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		uid := strings.TrimSuffix(e.Name(), ".json")
		if _, err := uuid.Parse(uid); err != nil {
			logger.Debug("Skipping foreign file in snapshot directory: %s", e.Name())
			continue
		}
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids, nil
}

// pathFor validates uid and maps it to its file. Validation keeps a
// malicious or corrupted frontmatter value from escaping the directory.
func (s *Store) pathFor(uid string) (string, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return "", fmt.Errorf("%w: %q is not a valid snapshot uid", domain.ErrNotFound, uid)
	}
	return filepath.Join(s.dir, uid+".json"), nil
}
