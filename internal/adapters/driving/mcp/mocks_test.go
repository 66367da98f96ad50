package mcp

import (
	"context"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driving"
)

// mockImporter implements driving.ImportService for testing.
type mockImporter struct {
	items   []domain.ImportItem
	match   *domain.DuplicateMatch
	summary domain.BatchSummary
	err     error
}

func (m *mockImporter) EnsureID(_ context.Context, doc domain.DocumentRecord) (string, error) {
	return doc.UID, m.err
}

func (m *mockImporter) FindBestMatch(_ context.Context, item domain.ImportItem) (*domain.DuplicateMatch, error) {
	m.items = append(m.items, item)
	return m.match, m.err
}

func (m *mockImporter) ImportBatch(_ context.Context, items []domain.ImportItem) (domain.BatchSummary, error) {
	m.items = append(m.items, items...)
	return m.summary, m.err
}

// mockMaintainer implements driving.MaintenanceService for testing.
type mockMaintainer struct {
	status driving.VaultStatus
	err    error
}

func (m *mockMaintainer) CollectSnapshots(_ context.Context) (int, error) { return 0, m.err }
func (m *mockMaintainer) PruneBackups(_ context.Context) (int, error)     { return 0, m.err }
func (m *mockMaintainer) RebuildIndex(_ context.Context) (int, error)     { return 0, m.err }
func (m *mockMaintainer) WatchVault(_ context.Context) error              { return m.err }

func (m *mockMaintainer) Status(_ context.Context) (driving.VaultStatus, error) {
	return m.status, m.err
}
