// Package markdown is the default parser and renderer pair for highlight
// documents. The renderer emits one blockquote per highlight with a
// machine-readable HTML comment above it carrying the device position, and
// the parser recovers annotations from that layout by walking the goldmark
// AST. Render followed by ExtractHighlights round-trips page, positions,
// text and note losslessly for unedited documents, which is the contract
// the merge paths rely on.
package markdown
