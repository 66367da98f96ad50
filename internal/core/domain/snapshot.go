package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Snapshot is the recorded body of a document as it stood immediately after
// the last import commit. It is the merge base for three-way merges: the
// snapshot is what the importer wrote, the document is what the user edited,
// and the device payload is what arrived since.
type Snapshot struct {
	// UID is the document identity the snapshot belongs to.
	UID string

	// ContentHash is the integrity hash over Body, in "sha256:<hex>" form.
	ContentHash string

	// Body is the document body at commit time, frontmatter excluded.
	Body string

	// CreatedAt is the commit timestamp ("2006-01-02T15:04:05Z07:00").
	CreatedAt string
}

// NewSnapshot builds a snapshot for uid over body, computing the integrity
// hash. createdAt is stored verbatim.
func NewSnapshot(uid, body, createdAt string) Snapshot {
	return Snapshot{
		UID:         uid,
		ContentHash: HashContent(body),
		Body:        body,
		CreatedAt:   createdAt,
	}
}

// Verify reports whether Body still matches ContentHash. A snapshot that
// fails verification must not be used as a merge base.
func (s Snapshot) Verify() bool {
	return s.ContentHash != "" && s.ContentHash == HashContent(s.Body)
}

// HashContent computes the canonical content hash of a document body in
// "sha256:<hex>" form. Line endings are normalised to LF first so a body
// that round-tripped through a CRLF editor still verifies.
func HashContent(body string) string {
	normalised := strings.ReplaceAll(body, "\r\n", "\n")
	sum := sha256.Sum256([]byte(normalised))
	return "sha256:" + hex.EncodeToString(sum[:])
}
