// Package backup keeps dated copies of documents about to be overwritten.
// One file per write, named after the document plus a timestamp and content
// hash, pruned by age and by a per-document cap so a frequently re-imported
// book cannot fill the disk.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.BackupStore = (*Store)(nil)

// Store writes backups under a dedicated directory. The token it hands out
// is the backup's filename.
type Store struct {
	dir string
	now func() time.Time
}

// backupName is "<stem>-<dochash8>.<unixnano>-<contenthash8>.bak". The
// document hash groups backups of the same path for the per-document cap;
// the nano timestamp orders them.
var backupName = regexp.MustCompile(`^(.+)\.(\d+)-[0-9a-f]{8}\.bak$`)

// NewStore opens the backup directory, creating it if needed. Like the
// snapshot directory, a backup directory that cannot be written blocks
// merging, so writability is probed up front.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: backup directory %s: %v", domain.ErrCapabilityUnavailable, dir, err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: backup directory %s is not writable: %v", domain.ErrCapabilityUnavailable, dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Store{dir: dir, now: time.Now}, nil
}

// Backup stores content as a new backup of the document at path.
func (s *Store) Backup(_ context.Context, path, content string) (string, error) {
	name := fmt.Sprintf("%s.%d-%s.bak",
		groupFor(path), s.now().UnixNano(), hash8(content))

	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("%w: backup %s: %v", domain.ErrWriteFailed, path, err)
	}
	return name, nil
}

// Restore returns the content stored under token.
func (s *Store) Restore(_ context.Context, token string) (string, error) {
	if token != filepath.Base(token) || !strings.HasSuffix(token, ".bak") {
		return "", fmt.Errorf("%w: backup token %q", domain.ErrNotFound, token)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, token))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: backup %s", domain.ErrNotFound, token)
		}
		return "", fmt.Errorf("%w: restore %s: %v", domain.ErrReadFailed, token, err)
	}
	return string(data), nil
}

// Prune removes backups older than keepFor, then the oldest backups of each
// document beyond keepPerDoc.
func (s *Store) Prune(_ context.Context, keepFor time.Duration, keepPerDoc int) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: list backups: %v", domain.ErrReadFailed, err)
	}

	type backup struct {
		name  string
		group string
		nanos int64
	}
	groups := make(map[string][]backup)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := backupName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		nanos, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		groups[m[1]] = append(groups[m[1]], backup{name: e.Name(), group: m[1], nanos: nanos})
	}

	cutoff := s.now().Add(-keepFor).UnixNano()
	removed := 0
	for _, backups := range groups {
		// Newest first; survivors are the head of the list.
		sort.Slice(backups, func(i, j int) bool { return backups[i].nanos > backups[j].nanos })
		for i, b := range backups {
			if b.nanos >= cutoff && i < keepPerDoc {
				continue
			}
			if err := os.Remove(filepath.Join(s.dir, b.name)); err != nil {
				logger.Debug("Prune backup %s: %v", b.name, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// groupFor derives the per-document filename prefix: the document's stem
// for readability plus a short path hash for uniqueness, since two
// documents in different folders may share a stem.
func groupFor(path string) string {
	stem := strings.TrimSuffix(filepath.Base(filepath.FromSlash(path)), ".md")
	if stem == "" {
		stem = "untitled"
	}
	return stem + "-" + hash8(path)
}

func hash8(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
