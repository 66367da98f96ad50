package device

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/t5k6/marginalia/internal/core/domain"
)

// payloadBook mirrors one book of the reader's JSON highlight export. The
// exporter has shipped several shapes over the years, so the optional
// fields are tolerated in all of them: a single author string with
// newline-separated names or an authors array, "entries" with the
// highlight list, positions as strings or numbers.
type payloadBook struct {
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Authors     []string          `json:"authors"`
	File        string            `json:"file"`
	MD5         string            `json:"md5"`
	PartialMD5  string            `json:"partial_md5_checksum"`
	Identifiers map[string]string `json:"identifiers"`
	Entries     []payloadEntry    `json:"entries"`
}

type payloadEntry struct {
	Chapter  string          `json:"chapter"`
	Datetime string          `json:"datetime"`
	Time     string          `json:"time"`
	Page     json.RawMessage `json:"page"`
	Pos0     json.RawMessage `json:"pos0"`
	Pos1     json.RawMessage `json:"pos1"`
	Text     string          `json:"text"`
	Note     string          `json:"note"`
	Color    string          `json:"color"`
	Drawer   string          `json:"drawer"`
}

// LoadPayload reads a highlight export file into import items.
func LoadPayload(path string) ([]domain.ImportItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: export file %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: read export %s: %v", domain.ErrReadFailed, path, err)
	}
	items, err := ParsePayload(data)
	if err != nil {
		return nil, fmt.Errorf("parse export %s: %w", path, err)
	}
	for i := range items {
		items[i].SourcePath = path
	}
	return items, nil
}

// ParsePayload decodes a highlight export. The top level is either a plain
// array of books or an object wrapping one under "documents".
func ParsePayload(data []byte) ([]domain.ImportItem, error) {
	var books []payloadBook
	if err := json.Unmarshal(data, &books); err != nil {
		var wrapped struct {
			Documents []payloadBook `json:"documents"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || wrapped.Documents == nil {
			return nil, fmt.Errorf("unrecognised export format: %w", err)
		}
		books = wrapped.Documents
	}

	items := make([]domain.ImportItem, 0, len(books))
	for _, book := range books {
		item := domain.ImportItem{Book: bookIdentity(book)}
		for _, entry := range book.Entries {
			ann, ok := annotation(entry)
			if !ok {
				continue
			}
			item.Annotations = append(item.Annotations, ann)
		}
		if item.Book.Title == "" && len(item.Annotations) == 0 {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func bookIdentity(book payloadBook) domain.BookIdentity {
	identity := domain.BookIdentity{Title: book.Title}

	identity.Authors = book.Authors
	if len(identity.Authors) == 0 && book.Author != "" {
		identity.Authors = splitAuthors(book.Author)
	}

	identity.ContentHash = book.MD5
	if identity.ContentHash == "" {
		identity.ContentHash = book.PartialMD5
	}

	for scheme, value := range book.Identifiers {
		if value == "" {
			continue
		}
		identity.Identifiers = append(identity.Identifiers, domain.StrongIdentifier{Scheme: scheme, Value: value})
	}
	return identity
}

// annotation converts one export entry. Entries with no text are bookmarks,
// not highlights, and are dropped.
func annotation(entry payloadEntry) (domain.Annotation, bool) {
	if entry.Text == "" {
		return domain.Annotation{}, false
	}

	ann := domain.Annotation{
		Chapter:  entry.Chapter,
		Text:     entry.Text,
		Note:     entry.Note,
		Datetime: entry.Datetime,
		Color:    entry.Color,
	}
	if ann.Datetime == "" {
		ann.Datetime = entry.Time
	}
	if ann.Color == "" {
		ann.Color = entry.Drawer
	}

	page, ok := rawInt(entry.Page)
	if !ok {
		return domain.Annotation{}, false
	}
	ann.Page = page
	ann.Pos0 = rawString(entry.Pos0)
	ann.Pos1 = rawString(entry.Pos1)
	return ann, true
}

// rawInt decodes a JSON number or numeric string.
func rawInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}

// rawString decodes a JSON string or renders a number as its literal.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
