package mcp

import (
	"github.com/t5k6/marginalia/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Importer runs payloads through the duplicate resolution pipeline.
	Importer driving.ImportService

	// Maintainer reports vault state. Optional; the status resources
	// degrade to empty output without it.
	Maintainer driving.MaintenanceService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Importer == nil {
		return ErrMissingImportService
	}
	return nil
}
