package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// AnnotationInput is one highlight within a tool payload.
type AnnotationInput struct {
	Page     int    `json:"page" jsonschema:"page number the highlight starts on"`
	Pos0     string `json:"pos0,omitempty" jsonschema:"device position where the highlight starts"`
	Pos1     string `json:"pos1,omitempty" jsonschema:"device position where the highlight ends"`
	Chapter  string `json:"chapter,omitempty" jsonschema:"chapter the highlight belongs to"`
	Text     string `json:"text" jsonschema:"the highlighted passage"`
	Note     string `json:"note,omitempty" jsonschema:"the reader's note attached to the highlight"`
	Datetime string `json:"datetime,omitempty" jsonschema:"when the highlight was made"`
	Color    string `json:"color,omitempty" jsonschema:"highlight colour"`
}

// BookInput identifies one book and its highlights within a tool payload.
type BookInput struct {
	Title       string            `json:"title" jsonschema:"the book's title"`
	Authors     []string          `json:"authors,omitempty" jsonschema:"the book's authors"`
	Identifiers map[string]string `json:"identifiers,omitempty" jsonschema:"strong identifiers by scheme, e.g. isbn"`
	ContentHash string            `json:"content_hash,omitempty" jsonschema:"the device's content hash for the book file"`
	Annotations []AnnotationInput `json:"annotations" jsonschema:"the book's highlights"`
}

// FindDuplicateInput is the input schema for the find_duplicate tool.
type FindDuplicateInput struct {
	Book BookInput `json:"book" jsonschema:"the book to look up in the vault"`
}

// FindDuplicateOutput is the output schema for the find_duplicate tool.
type FindDuplicateOutput struct {
	Found              bool   `json:"found"`
	Path               string `json:"path,omitempty"`
	MatchType          string `json:"match_type,omitempty"`
	NewHighlights      int    `json:"new_highlights,omitempty"`
	ModifiedHighlights int    `json:"modified_highlights,omitempty"`
	CanMergeSafely     bool   `json:"can_merge_safely,omitempty"`
	PartialScan        bool   `json:"partial_scan,omitempty"`
}

// ImportInput is the input schema for the import_annotations tool.
type ImportInput struct {
	Books []BookInput `json:"books" jsonschema:"the books to import"`
}

// ImportOutput is the output schema for the import_annotations tool.
type ImportOutput struct {
	Created    int      `json:"created"`
	Merged     int      `json:"merged"`
	AutoMerged int      `json:"auto_merged"`
	KeptBoth   int      `json:"kept_both"`
	Skipped    int      `json:"skipped"`
	Failed     []string `json:"failed,omitempty"`
	Conflicted []string `json:"conflicted,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_duplicate",
		Description: "Find the vault note a book's highlights would merge into",
	}, s.handleFindDuplicate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "import_annotations",
		Description: "Import highlights into the vault; ambiguous duplicates are skipped, never overwritten",
	}, s.handleImport)
}

// handleFindDuplicate handles the find_duplicate tool invocation.
func (s *Server) handleFindDuplicate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindDuplicateInput,
) (*mcp.CallToolResult, FindDuplicateOutput, error) {
	match, err := s.ports.Importer.FindBestMatch(ctx, toImportItem(input.Book))
	if err != nil {
		return nil, FindDuplicateOutput{}, err
	}
	if match == nil {
		return nil, FindDuplicateOutput{Found: false}, nil
	}

	return nil, FindDuplicateOutput{
		Found:              true,
		Path:               match.Document.Path,
		MatchType:          string(match.Type),
		NewHighlights:      match.NewCount,
		ModifiedHighlights: match.ModifiedCount,
		CanMergeSafely:     match.CanMergeSafely,
		PartialScan:        match.Confidence == domain.ConfidencePartial,
	}, nil
}

// handleImport handles the import_annotations tool invocation.
func (s *Server) handleImport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ImportInput,
) (*mcp.CallToolResult, ImportOutput, error) {
	items := make([]domain.ImportItem, len(input.Books))
	for i, book := range input.Books {
		items[i] = toImportItem(book)
	}

	summary, err := s.ports.Importer.ImportBatch(ctx, items)
	if err != nil {
		return nil, ImportOutput{}, err
	}

	output := ImportOutput{
		Created:    summary.Count(domain.OutcomeCreated),
		Merged:     summary.Count(domain.OutcomeMerged),
		AutoMerged: summary.Count(domain.OutcomeAutoMerged),
		KeptBoth:   summary.Count(domain.OutcomeKeptBoth),
		Skipped:    summary.Count(domain.OutcomeSkipped),
		Conflicted: summary.Conflicted(),
	}
	for _, failure := range summary.Failures {
		output.Failed = append(output.Failed, failure.Book.Title+": "+failure.Err.Error())
	}

	return nil, output, nil
}

// toImportItem converts a tool payload book to the domain representation.
func toImportItem(book BookInput) domain.ImportItem {
	identity := domain.BookIdentity{
		Title:       book.Title,
		Authors:     book.Authors,
		ContentHash: book.ContentHash,
	}
	for scheme, value := range book.Identifiers {
		identity.Identifiers = append(identity.Identifiers, domain.StrongIdentifier{
			Scheme: scheme,
			Value:  value,
		})
	}

	annotations := make([]domain.Annotation, len(book.Annotations))
	for i, a := range book.Annotations {
		annotations[i] = domain.Annotation{
			Page:     a.Page,
			Pos0:     a.Pos0,
			Pos1:     a.Pos1,
			Chapter:  a.Chapter,
			Text:     a.Text,
			Note:     a.Note,
			Datetime: a.Datetime,
			Color:    a.Color,
		}
	}

	return domain.ImportItem{
		Book:        identity,
		Annotations: annotations,
		SourcePath:  "mcp",
	}
}
