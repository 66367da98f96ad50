package domain

import (
	"strings"
)

// StrongIdentifier is an external catalog identifier carried by the device
// metadata, e.g. {Scheme: "isbn", Value: "9780141439563"}. Strong identifiers
// allow high-confidence duplicate matching; titles and authors do not.
type StrongIdentifier struct {
	// Scheme names the identifier system ("isbn", "asin", "calibre", ...).
	Scheme string

	// Value is the identifier within the scheme.
	Value string
}

// BookIdentity is the identity data for one incoming book, constructed fresh
// for every import item.
type BookIdentity struct {
	// Title as reported by the device.
	Title string

	// Authors as reported by the device, in device order.
	Authors []string

	// Identifiers are the strong identifiers, when the device has them.
	Identifiers []StrongIdentifier

	// ContentHash is the device's hash of the book file (partial MD5 in
	// KOReader's case). Optional; empty when the device did not report one.
	ContentHash string
}

// BookKey is the normalised authors::title composite. It is a LOW-confidence
// matching key only: distinct books collide on it, so it must never be used
// as a primary key.
type BookKey string

// Key derives the BookKey for this identity.
func (b BookIdentity) Key() BookKey {
	authors := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		if n := normaliseKeyPart(a); n != "" {
			authors = append(authors, n)
		}
	}
	return BookKey(strings.Join(authors, ", ") + "::" + normaliseKeyPart(b.Title))
}

// HasStrongIdentifiers reports whether the device supplied at least one
// strong identifier for this book.
func (b BookIdentity) HasStrongIdentifiers() bool {
	return len(b.Identifiers) > 0
}

// FileStem returns the conventional "Authors - Title" filename stem used by
// the naming convention, without extension. Characters that are unsafe in
// filenames are replaced with spaces and runs collapsed.
func (b BookIdentity) FileStem() string {
	stem := strings.Join(b.Authors, ", ")
	if stem != "" && b.Title != "" {
		stem += " - "
	}
	stem += b.Title
	return sanitiseFileStem(stem)
}

// normaliseKeyPart lower-cases and collapses all whitespace runs to a single
// space, so hand-typed and device-reported variants produce the same key.
func normaliseKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// sanitiseFileStem strips characters the vault store rejects in filenames.
func sanitiseFileStem(s string) string {
	replacer := strings.NewReplacer(
		"/", " ", "\\", " ", ":", " ", "*", " ", "?", " ",
		"\"", " ", "<", " ", ">", " ", "|", " ", "#", " ", "^", " ",
	)
	return strings.Join(strings.Fields(replacer.Replace(s)), " ")
}
