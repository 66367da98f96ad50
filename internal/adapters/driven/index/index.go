// Package index is the SQLite-backed import index: the persistent map from
// book identity keys and device content hashes to the vault paths earlier
// imports wrote. It is an accelerator for duplicate location, never an
// authority; callers re-verify every path against the vault.
package index

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/t5k6/marginalia/internal/adapters/driven/index/migrations"
	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.ImportIndex = (*Index)(nil)

// Index is the SQLite import index.
type Index struct {
	db   *sql.DB
	path string
}

// Open creates or opens the index database at the specified data directory.
// If dataDir is empty, defaults to ~/.marginalia/data/index.db.
func Open(dataDir string) (*Index, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".marginalia", "data")
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// WAL mode so a watcher goroutine and an import batch can share the db.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	idx := &Index{db: db, path: dbPath}
	if err := idx.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running index migrations: %w", err)
	}
	return idx, nil
}

// Close closes the database connection.
func (i *Index) Close() error {
	return i.db.Close()
}

// Path returns the database file path.
func (i *Index) Path() string {
	return i.path
}

// PathsForKey returns the vault paths recorded for key, most recent first.
func (i *Index) PathsForKey(ctx context.Context, key domain.BookKey) ([]string, error) {
	return i.queryPaths(ctx, `SELECT path FROM import_paths WHERE book_key = ? ORDER BY recorded_at DESC, path`, string(key))
}

// PathsForHash returns the vault paths recorded for a device content hash,
// most recent first.
func (i *Index) PathsForHash(ctx context.Context, hash string) ([]string, error) {
	if hash == "" {
		return nil, nil
	}
	return i.queryPaths(ctx, `SELECT path FROM import_paths WHERE content_hash = ? ORDER BY recorded_at DESC, path`, hash)
}

// Record associates path with the book's key and content hash, replacing
// any earlier row for the same path.
func (i *Index) Record(ctx context.Context, book domain.BookIdentity, path string) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO import_paths (path, book_key, content_hash, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			book_key = excluded.book_key,
			content_hash = excluded.content_hash,
			recorded_at = excluded.recorded_at
	`, path, string(book.Key()), book.ContentHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording %s: %w", path, err)
	}
	return nil
}

// Forget removes every row for path.
func (i *Index) Forget(ctx context.Context, path string) error {
	if _, err := i.db.ExecContext(ctx, `DELETE FROM import_paths WHERE path = ?`, path); err != nil {
		return fmt.Errorf("forgetting %s: %w", path, err)
	}
	return nil
}

// BeginRebuild clears the index and marks it not ready. The flag persists,
// so an interrupted rebuild leaves the index distrusted rather than
// half-populated and believed.
func (i *Index) BeginRebuild(ctx context.Context) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM import_paths`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE index_state SET ready = 0, updated_at = ? WHERE id = 1`, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark index rebuilding: %w", err)
	}
	return tx.Commit()
}

// EndRebuild marks the index trustworthy again.
func (i *Index) EndRebuild(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, `UPDATE index_state SET ready = 1, updated_at = ? WHERE id = 1`, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark index ready: %w", err)
	}
	return nil
}

// Ready reports whether the index is trustworthy for lookups.
func (i *Index) Ready(ctx context.Context) (bool, error) {
	var ready int
	row := i.db.QueryRowContext(ctx, `SELECT ready FROM index_state WHERE id = 1`)
	if err := row.Scan(&ready); err != nil {
		return false, fmt.Errorf("reading index state: %w", err)
	}
	return ready == 1, nil
}

func (i *Index) queryPaths(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// migrate runs all pending migrations.
func (i *Index) migrate(fsys embed.FS) error {
	_, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := i.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := i.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := i.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}
