package services

// Shared in-memory doubles for the driven ports, with just enough failure
// injection to exercise the rollback and downgrade paths. The parser and
// renderer doubles speak a one-line-per-highlight format that round-trips
// exactly, so merge output can be asserted byte for byte.

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
)

type fakeVault struct {
	mu     sync.Mutex
	files  map[string]string
	writes []string

	readErr   error
	writeErr  error
	existsErr error
	walkErr   error
	createErr error

	changes chan driven.Change
}

func newFakeVault(files map[string]string) *fakeVault {
	if files == nil {
		files = make(map[string]string)
	}
	return &fakeVault{files: files}
}

func (v *fakeVault) Read(_ context.Context, path string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.readErr != nil {
		return "", v.readErr
	}
	content, ok := v.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return content, nil
}

func (v *fakeVault) WriteAtomic(_ context.Context, path, content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.writeErr != nil {
		return v.writeErr
	}
	v.files[path] = content
	v.writes = append(v.writes, path)
	return nil
}

func (v *fakeVault) Exists(_ context.Context, path string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.existsErr != nil {
		return false, v.existsErr
	}
	_, ok := v.files[path]
	return ok, nil
}

func (v *fakeVault) Remove(_ context.Context, path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.files[path]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	delete(v.files, path)
	return nil
}

func (v *fakeVault) CreateUnique(_ context.Context, dir, stem, content string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.createErr != nil {
		return "", v.createErr
	}
	base := stem
	if dir != "" {
		base = dir + "/" + stem
	}
	path := base + ".md"
	for n := 1; ; n++ {
		if _, taken := v.files[path]; !taken {
			break
		}
		path = fmt.Sprintf("%s %d.md", base, n)
	}
	v.files[path] = content
	v.writes = append(v.writes, path)
	return path, nil
}

func (v *fakeVault) Walk(ctx context.Context, dir string, fn func(path string) error) error {
	v.mu.Lock()
	if v.walkErr != nil {
		v.mu.Unlock()
		return v.walkErr
	}
	paths := make([]string, 0, len(v.files))
	for p := range v.files {
		if dir == "" || strings.HasPrefix(p, dir+"/") {
			paths = append(paths, p)
		}
	}
	v.mu.Unlock()

	sort.Strings(paths)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (v *fakeVault) Changes(_ context.Context) (<-chan driven.Change, error) {
	if v.changes == nil {
		return nil, fmt.Errorf("%w: change stream not supported", domain.ErrCapabilityUnavailable)
	}
	return v.changes, nil
}

// writeCount reports how many writes hit the vault, for no-op assertions.
func (v *fakeVault) writeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.writes)
}

func (v *fakeVault) content(path string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.files[path]
}

type fakeSnapshots struct {
	mu    sync.Mutex
	snaps map[string]domain.Snapshot

	corrupt map[string]bool

	readErr   error
	writeErr  error
	removeErr error
	listErr   error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		snaps:   make(map[string]domain.Snapshot),
		corrupt: make(map[string]bool),
	}
}

func (s *fakeSnapshots) Read(_ context.Context, uid string) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return domain.Snapshot{}, s.readErr
	}
	if s.corrupt[uid] {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s", domain.ErrIntegrityFailed, uid)
	}
	snap, ok := s.snaps[uid]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, uid)
	}
	return snap, nil
}

func (s *fakeSnapshots) Write(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.snaps[snap.UID] = snap
	return nil
}

func (s *fakeSnapshots) Remove(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	if _, ok := s.snaps[uid]; !ok {
		return fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, uid)
	}
	delete(s.snaps, uid)
	return nil
}

func (s *fakeSnapshots) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	uids := make([]string, 0, len(s.snaps))
	for uid := range s.snaps {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids, nil
}

// put seeds a snapshot directly, bypassing error injection.
func (s *fakeSnapshots) put(uid, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[uid] = domain.NewSnapshot(uid, body, "2026-01-01T00:00:00Z")
}

func (s *fakeSnapshots) get(uid string) (domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[uid]
	return snap, ok
}

type fakeBackups struct {
	mu      sync.Mutex
	next    int
	stored  map[string]string
	perPath map[string]int

	backupErr  error
	restoreErr error
	pruneErr   error
	pruned     int
}

func newFakeBackups() *fakeBackups {
	return &fakeBackups{stored: make(map[string]string), perPath: make(map[string]int)}
}

func (b *fakeBackups) Backup(_ context.Context, path, content string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backupErr != nil {
		return "", b.backupErr
	}
	b.next++
	token := fmt.Sprintf("bak-%d", b.next)
	b.stored[token] = content
	b.perPath[path]++
	return token, nil
}

func (b *fakeBackups) Restore(_ context.Context, token string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.restoreErr != nil {
		return "", b.restoreErr
	}
	content, ok := b.stored[token]
	if !ok {
		return "", fmt.Errorf("%w: backup %s", domain.ErrNotFound, token)
	}
	return content, nil
}

func (b *fakeBackups) Prune(_ context.Context, _ time.Duration, _ int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pruneErr != nil {
		return 0, b.pruneErr
	}
	return b.pruned, nil
}

type fakeCatalog struct {
	byIdentifier map[string]domain.BookIdentity
	hashCounts   map[string]int
	err          error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		byIdentifier: make(map[string]domain.BookIdentity),
		hashCounts:   make(map[string]int),
	}
}

func (c *fakeCatalog) FindByIdentifier(_ context.Context, id domain.StrongIdentifier) (domain.BookIdentity, error) {
	if c.err != nil {
		return domain.BookIdentity{}, c.err
	}
	book, ok := c.byIdentifier[id.Scheme+":"+id.Value]
	if !ok {
		return domain.BookIdentity{}, fmt.Errorf("%w: identifier %s:%s", domain.ErrNotFound, id.Scheme, id.Value)
	}
	return book, nil
}

func (c *fakeCatalog) CountByContentHash(_ context.Context, hash string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.hashCounts[hash], nil
}

type fakeIndex struct {
	mu         sync.Mutex
	byKey      map[domain.BookKey][]string
	byHash     map[string][]string
	ready      bool
	rebuilding bool
	recorded   []string
	forgotten  []string
	err        error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		byKey:  make(map[domain.BookKey][]string),
		byHash: make(map[string][]string),
		ready:  true,
	}
}

func (i *fakeIndex) PathsForKey(_ context.Context, key domain.BookKey) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return nil, i.err
	}
	return append([]string(nil), i.byKey[key]...), nil
}

func (i *fakeIndex) PathsForHash(_ context.Context, hash string) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return nil, i.err
	}
	return append([]string(nil), i.byHash[hash]...), nil
}

func (i *fakeIndex) Record(_ context.Context, book domain.BookIdentity, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.byKey[book.Key()] = appendUnique(i.byKey[book.Key()], path)
	if book.ContentHash != "" {
		i.byHash[book.ContentHash] = appendUnique(i.byHash[book.ContentHash], path)
	}
	i.recorded = append(i.recorded, path)
	return nil
}

func (i *fakeIndex) Forget(_ context.Context, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	for key, paths := range i.byKey {
		i.byKey[key] = removePath(paths, path)
	}
	for hash, paths := range i.byHash {
		i.byHash[hash] = removePath(paths, path)
	}
	i.forgotten = append(i.forgotten, path)
	return nil
}

func (i *fakeIndex) BeginRebuild(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byKey = make(map[domain.BookKey][]string)
	i.byHash = make(map[string][]string)
	i.rebuilding = true
	i.ready = false
	return nil
}

func (i *fakeIndex) EndRebuild(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rebuilding = false
	i.ready = true
	return nil
}

func (i *fakeIndex) Ready(_ context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ready && !i.rebuilding, nil
}

func (i *fakeIndex) keyPaths(key domain.BookKey) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.byKey[key]...)
}

func (i *fakeIndex) forgottenPaths() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.forgotten...)
}

func (i *fakeIndex) recordedPaths() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.recorded...)
}

func appendUnique(paths []string, p string) []string {
	for _, existing := range paths {
		if existing == p {
			return paths
		}
	}
	return append(paths, p)
}

func removePath(paths []string, p string) []string {
	out := paths[:0]
	for _, existing := range paths {
		if existing != p {
			out = append(out, existing)
		}
	}
	return out
}

// fakePrompter replays a scripted sequence of decisions and records what it
// was asked about.
type fakePrompter struct {
	mu        sync.Mutex
	decisions []domain.PromptDecision
	asked     []domain.DuplicateMatch
	err       error
	errOnBook string
}

func (p *fakePrompter) ResolveDuplicate(_ context.Context, book domain.BookIdentity, match domain.DuplicateMatch) (domain.PromptDecision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return domain.PromptDecision{}, p.err
	}
	if p.errOnBook != "" && p.errOnBook == book.Title {
		return domain.PromptDecision{}, fmt.Errorf("prompt for %q failed", book.Title)
	}
	p.asked = append(p.asked, match)
	if len(p.decisions) == 0 {
		return domain.PromptDecision{Choice: domain.ChoiceSkip}, nil
	}
	decision := p.decisions[0]
	p.decisions = p.decisions[1:]
	return decision, nil
}

func (p *fakePrompter) askedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.asked)
}

// fakeParser and fakeRenderer speak a one-line format:
//
//	# Title
//
//	> [page|pos0|pos1] highlight text
//	  note: optional note
//
// Render then ExtractHighlights is lossless for page, positions, text and
// note, which is all the merge paths compare.
type fakeParser struct {
	err error
}

func (p *fakeParser) ExtractHighlights(body string) ([]domain.Annotation, error) {
	if p.err != nil {
		return nil, p.err
	}
	var anns []domain.Annotation
	lines := strings.Split(body, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, "> [") {
			continue
		}
		rest := strings.TrimPrefix(line, "> [")
		end := strings.Index(rest, "] ")
		if end < 0 {
			continue
		}
		parts := strings.Split(rest[:end], "|")
		if len(parts) != 3 {
			continue
		}
		page, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		ann := domain.Annotation{Page: page, Pos0: parts[1], Pos1: parts[2], Text: rest[end+2:]}
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "  note: ") {
			ann.Note = strings.TrimPrefix(lines[i+1], "  note: ")
			i++
		}
		anns = append(anns, ann)
	}
	return anns, nil
}

type fakeRenderer struct {
	err error
}

func (r *fakeRenderer) Render(book domain.BookIdentity, anns []domain.Annotation) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", book.Title)
	for _, ann := range anns {
		b.WriteString("\n")
		fmt.Fprintf(&b, "> [%d|%s|%s] %s\n", ann.Page, ann.Pos0, ann.Pos1, ann.Text)
		if ann.Note != "" {
			fmt.Fprintf(&b, "  note: %s\n", ann.Note)
		}
	}
	return b.String(), nil
}

// Interface checks for the doubles.
var (
	_ driven.VaultStore        = (*fakeVault)(nil)
	_ driven.SnapshotStore     = (*fakeSnapshots)(nil)
	_ driven.BackupStore       = (*fakeBackups)(nil)
	_ driven.DeviceCatalog     = (*fakeCatalog)(nil)
	_ driven.ImportIndex       = (*fakeIndex)(nil)
	_ driven.DuplicatePrompter = (*fakePrompter)(nil)
	_ driven.HighlightParser   = (*fakeParser)(nil)
	_ driven.BodyRenderer      = (*fakeRenderer)(nil)
)
