package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

// Ensure DeviceCatalog implements the interface.
var _ driven.DeviceCatalog = (*DeviceCatalog)(nil)

// DeviceCatalog is an in-memory implementation of driven.DeviceCatalog,
// seeded through AddBook.
type DeviceCatalog struct {
	mu           sync.RWMutex
	byIdentifier map[string]domain.BookIdentity
	hashCounts   map[string]int
}

// NewDeviceCatalog creates a new in-memory device catalog.
func NewDeviceCatalog() *DeviceCatalog {
	return &DeviceCatalog{
		byIdentifier: make(map[string]domain.BookIdentity),
		hashCounts:   make(map[string]int),
	}
}

// AddBook seeds one device record, registering its content hash and every
// strong identifier it carries.
func (c *DeviceCatalog) AddBook(book domain.BookIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if book.ContentHash != "" {
		c.hashCounts[book.ContentHash]++
	}
	for _, id := range book.Identifiers {
		c.byIdentifier[identifierKey(id)] = book
	}
}

// FindByIdentifier returns the book record matching a strong identifier.
func (c *DeviceCatalog) FindByIdentifier(_ context.Context, id domain.StrongIdentifier) (domain.BookIdentity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	book, ok := c.byIdentifier[identifierKey(id)]
	if !ok {
		return domain.BookIdentity{}, fmt.Errorf("%w: identifier %s:%s", domain.ErrNotFound, id.Scheme, id.Value)
	}
	return book, nil
}

// CountByContentHash returns how many device records share hash.
func (c *DeviceCatalog) CountByContentHash(_ context.Context, hash string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hashCounts[hash], nil
}

func identifierKey(id domain.StrongIdentifier) string {
	return strings.ToLower(id.Scheme) + ":" + id.Value
}
