// Package vault is the filesystem implementation of the vault store: the
// user's markdown directory, addressed by vault-relative forward-slashed
// paths. Writes are temp-then-rename atomic, and mutations made outside
// this process surface through an fsnotify change stream.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VaultStore = (*Store)(nil)

// Store is a vault rooted at a directory on disk.
type Store struct {
	root string

	watchOnce sync.Once
	watchErr  error
	changes   chan driven.Change
}

// NewStore opens the vault rooted at root, creating the directory if it
// does not exist yet.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create vault root: %w", mapFSError(err))
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute vault root directory.
func (s *Store) Root() string {
	return s.root
}

// Read returns the content of the document at path.
func (s *Store) Read(_ context.Context, path string) (string, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, mapFSError(err))
	}
	return string(data), nil
}

// WriteAtomic replaces the document at path by writing a temp file in the
// same directory and renaming it into place, so readers never observe a
// half-written document.
func (s *Store) WriteAtomic(_ context.Context, path, content string) error {
	abs, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("%w: create parent of %s: %v", domain.ErrWriteFailed, path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), "."+filepath.Base(abs)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file for %s: %v", domain.ErrWriteFailed, path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", domain.ErrWriteFailed, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %v", domain.ErrWriteFailed, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", domain.ErrWriteFailed, path, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename into %s: %v", domain.ErrWriteFailed, path, err)
	}
	return nil
}

// Exists reports whether a document exists at path.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, mapFSError(err))
	}
	return !info.IsDir(), nil
}

// Remove deletes the document at path.
func (s *Store) Remove(_ context.Context, path string) error {
	abs, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("remove %s: %w", path, mapFSError(err))
	}
	return nil
}

// CreateUnique writes content under dir at a name derived from stem,
// appending " 1", " 2", ... until a free name is found. O_EXCL creation
// makes the existence check and the write one step, so two concurrent
// creators cannot claim the same name.
func (s *Store) CreateUnique(_ context.Context, dir, stem, content string) (string, error) {
	if stem == "" {
		stem = "Untitled"
	}
	relDir := strings.Trim(dir, "/")
	absDir, err := s.resolve(relDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", domain.ErrWriteFailed, relDir, err)
	}

	for n := 0; n < 10000; n++ {
		name := stem + ".md"
		if n > 0 {
			name = fmt.Sprintf("%s %d.md", stem, n)
		}
		f, err := os.OpenFile(filepath.Join(absDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("create %s: %w", name, mapFSError(err))
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return "", fmt.Errorf("%w: write %s: %v", domain.ErrWriteFailed, name, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("%w: close %s: %v", domain.ErrWriteFailed, name, err)
		}
		rel := name
		if relDir != "" {
			rel = relDir + "/" + name
		}
		return rel, nil
	}
	return "", fmt.Errorf("%w: no free name for %q under %s", domain.ErrWriteFailed, stem, relDir)
}

// Walk streams the vault's markdown documents under dir in lexical order.
// Hidden directories (".obsidian" and friends) are skipped.
func (s *Store) Walk(ctx context.Context, dir string, fn func(path string) error) error {
	relDir := strings.Trim(dir, "/")
	absDir, err := s.resolve(relDir)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == absDir {
				return filepath.SkipAll
			}
			return mapFSError(err)
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			if p != absDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}
		rel, rerr := filepath.Rel(s.root, p)
		if rerr != nil {
			return rerr
		}
		return fn(filepath.ToSlash(rel))
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", relDir, err)
	}
	return nil
}

// Changes starts (once) an fsnotify watcher over the vault tree and
// returns the shared change stream. The stream closes when ctx of the
// first call is done.
func (s *Store) Changes(ctx context.Context) (<-chan driven.Change, error) {
	s.watchOnce.Do(func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			s.watchErr = fmt.Errorf("%w: start vault watcher: %v", domain.ErrCapabilityUnavailable, err)
			return
		}
		if err := s.watchTree(watcher); err != nil {
			watcher.Close()
			s.watchErr = fmt.Errorf("%w: watch vault tree: %v", domain.ErrCapabilityUnavailable, err)
			return
		}
		s.changes = make(chan driven.Change, 64)
		go s.watchLoop(ctx, watcher)
	})
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	return s.changes, nil
}

// watchTree registers the root and every visible subdirectory.
func (s *Store) watchTree(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != s.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

// watchLoop translates fsnotify events into vault changes until ctx is done.
func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(s.changes)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// New directories need a watch of their own.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !strings.HasPrefix(filepath.Base(event.Name), ".") {
						if err := watcher.Add(event.Name); err != nil {
							logger.Debug("Watch %s: %v", event.Name, err)
						}
					}
					continue
				}
			}
			change, ok := s.translate(event)
			if !ok {
				continue
			}
			select {
			case s.changes <- change:
			case <-ctx.Done():
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Debug("Vault watcher: %v", err)
		}
	}
}

// translate maps one fsnotify event to a vault change. Chmods, hidden files
// and non-markdown files produce nothing. Renames surface as removals of
// the old path; the new path arrives as its own create event.
func (s *Store) translate(event fsnotify.Event) (driven.Change, bool) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || !strings.EqualFold(filepath.Ext(base), ".md") {
		return driven.Change{}, false
	}
	rel, err := filepath.Rel(s.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return driven.Change{}, false
	}

	change := driven.Change{Path: filepath.ToSlash(rel)}
	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		change.Op = driven.ChangeRemove
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		change.Op = driven.ChangeWrite
	default:
		return driven.Change{}, false
	}
	return change, true
}

// resolve turns a vault-relative path into an absolute one, rejecting
// escapes from the root.
func (s *Store) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." {
		return s.root, nil
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: path %q escapes the vault", domain.ErrPermissionDenied, path)
	}
	return filepath.Join(s.root, clean), nil
}

// mapFSError converts os errors to the domain taxonomy.
func mapFSError(err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	default:
		return err
	}
}
