package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for marginalia resources.
	uriScheme = "marginalia://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for the vault's import bookkeeping state.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "status",
		Name:        "vault-status",
		Description: "Vault import bookkeeping: document, uid and snapshot counts, index readiness",
		MIMEType:    "application/json",
	}, s.handleStatusResource)

	// Static resource for documents left with conflict regions.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "conflicts",
		Name:        "conflicted-documents",
		Description: "Vault documents whose last merge left unresolved conflict regions",
		MIMEType:    "application/json",
	}, s.handleConflictsResource)
}

// statusInfo is the JSON shape of the status resource.
type statusInfo struct {
	Documents  int  `json:"documents"`
	WithUID    int  `json:"with_uid"`
	Snapshots  int  `json:"snapshots"`
	Conflicted int  `json:"conflicted"`
	IndexReady bool `json:"index_ready"`
}

// handleStatusResource returns the vault's import bookkeeping state.
func (s *Server) handleStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Maintainer == nil {
		return jsonResource(req.Params.URI, statusInfo{})
	}

	status, err := s.ports.Maintainer.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading vault status: %w", err)
	}

	return jsonResource(req.Params.URI, statusInfo{
		Documents:  status.Documents,
		WithUID:    status.WithUID,
		Snapshots:  status.Snapshots,
		Conflicted: len(status.Conflicted),
		IndexReady: status.IndexReady,
	})
}

// handleConflictsResource returns the paths of conflicted documents.
func (s *Server) handleConflictsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	paths := []string{}
	if s.ports.Maintainer != nil {
		status, err := s.ports.Maintainer.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading vault status: %w", err)
		}
		if status.Conflicted != nil {
			paths = status.Conflicted
		}
	}
	return jsonResource(req.Params.URI, paths)
}

// jsonResource marshals v as the single JSON content of uri.
func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
