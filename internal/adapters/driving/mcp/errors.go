// Package mcp provides an MCP (Model Context Protocol) server adapter for
// marginalia. It lets AI assistants inspect the vault's import state and run
// highlight imports. The server never prompts: duplicates that would need a
// human decision are skipped unless the safe auto-merge path applies.
package mcp

import "errors"

// ErrMissingImportService is returned when the import service is not provided.
var ErrMissingImportService = errors.New("mcp: import service is required")
