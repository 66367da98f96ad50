// Package device reads the e-reader's own data: the statistics database
// that records every book the device knows, and the JSON highlight export
// the reader's exporter plugin produces. Everything here is read-only; the
// device's files are never ours to write.
package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure Catalog implements the interface.
var _ driven.DeviceCatalog = (*Catalog)(nil)

// Catalog answers identity questions from the reader's statistics database.
// The book table (title, authors, md5) is always present; the identifiers
// table only exists on devices that sync catalog metadata, so identifier
// lookups degrade to ErrCapabilityUnavailable without it.
type Catalog struct {
	db *sql.DB

	hasIdentifiers bool
}

// OpenCatalog opens the statistics database at path read-only.
func OpenCatalog(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: device database %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat device database: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening device database: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.inspect(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// inspect verifies the book table exists and probes for the optional
// identifiers table.
func (c *Catalog) inspect() error {
	tables := make(map[string]bool)
	rows, err := c.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("reading device schema: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning device schema: %w", err)
		}
		tables[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !tables["book"] {
		return fmt.Errorf("%w: device database has no book table", domain.ErrCapabilityUnavailable)
	}
	c.hasIdentifiers = tables["identifiers"]
	return nil
}

// FindByIdentifier resolves a strong identifier to the book record the
// device holds for it, content hash included.
func (c *Catalog) FindByIdentifier(ctx context.Context, id domain.StrongIdentifier) (domain.BookIdentity, error) {
	if !c.hasIdentifiers {
		return domain.BookIdentity{}, fmt.Errorf("%w: device database has no identifiers table", domain.ErrCapabilityUnavailable)
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT b.title, b.authors, b.md5
		FROM identifiers i
		JOIN book b ON b.id = i.book_id
		WHERE lower(i.scheme) = lower(?) AND i.value = ?
		LIMIT 1
	`, id.Scheme, id.Value)

	var title, authors, md5 sql.NullString
	if err := row.Scan(&title, &authors, &md5); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BookIdentity{}, fmt.Errorf("%w: identifier %s:%s", domain.ErrNotFound, id.Scheme, id.Value)
		}
		return domain.BookIdentity{}, fmt.Errorf("identifier lookup: %w", err)
	}

	return domain.BookIdentity{
		Title:       title.String,
		Authors:     splitAuthors(authors.String),
		Identifiers: []domain.StrongIdentifier{id},
		ContentHash: md5.String,
	}, nil
}

// CountByContentHash returns how many device records share hash.
func (c *Catalog) CountByContentHash(ctx context.Context, hash string) (int, error) {
	if hash == "" {
		return 0, nil
	}
	var count int
	row := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM book WHERE md5 = ?`, hash)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("content hash count: %w", err)
	}
	return count, nil
}

// splitAuthors breaks the device's authors column, which separates multiple
// authors with newlines.
func splitAuthors(s string) []string {
	var authors []string
	for _, part := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}
