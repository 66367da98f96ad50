package domain

// DocumentRecord is a highlight document as it exists in the vault: the
// path it lives at, its rendered body, and the stable identity read from
// its frontmatter.
type DocumentRecord struct {
	// Path is the vault-relative path of the markdown file.
	Path string

	// UID is the stable document identity from frontmatter. Empty for
	// legacy documents that have not been migrated yet.
	UID string

	// Body is the markdown content below the frontmatter block.
	Body string

	// Frontmatter holds the document's parsed frontmatter so edits
	// preserve keys this tool does not own.
	Frontmatter Frontmatter
}

// Frontmatter is the parsed YAML frontmatter of a highlight document.
// Keys the tool does not own round-trip through Extra untouched.
type Frontmatter struct {
	// UID is the stable document identity ("uid").
	UID string

	// Title and Authors describe the book the document belongs to.
	Title   string
	Authors []string

	// Conflicts is set to "unresolved" after a three-way merge that left
	// conflict regions in the body, and cleared once the user resolves them.
	Conflicts string

	// Extra preserves frontmatter keys owned by the user or by other
	// tools, in original order.
	Extra map[string]any
}

// HasUnresolvedConflicts reports whether the document is flagged as carrying
// unresolved merge conflict regions.
func (f Frontmatter) HasUnresolvedConflicts() bool {
	return f.Conflicts == ConflictsUnresolved
}

// ConflictsUnresolved is the frontmatter marker value written after a
// three-way merge that produced conflict regions.
const ConflictsUnresolved = "unresolved"
