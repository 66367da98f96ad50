package services

import (
	"context"
	"errors"
	"fmt"
	stdpath "path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/frontmatter"
	"github.com/t5k6/marginalia/internal/logger"
)

// LocatorConfig carries the tunables for candidate location.
type LocatorConfig struct {
	// HighlightsDir is the vault folder imports write into, used for the
	// direct probe and for tie-breaking between candidates.
	HighlightsDir string

	// Workers bounds the concurrent candidate analyses per tier.
	Workers int

	// ScanTimeout bounds the degraded full-vault scan. When it elapses the
	// scan's partial results are used with partial confidence.
	ScanTimeout time.Duration

	// ScanRate throttles document reads during the degraded scan so a large
	// vault does not monopolise the disk.
	ScanRate rate.Limit
}

// Locator finds the existing document that best matches an incoming book,
// trying a cost-ordered sequence of strategies and stopping at the first
// that produces an analysable candidate.
type Locator struct {
	vault     driven.VaultStore
	snapshots driven.SnapshotStore
	catalog   driven.DeviceCatalog
	index     driven.ImportIndex
	analyzer  *Analyzer

	highlightsDir string
	workers       int
	scanTimeout   time.Duration
	scanLimiter   *rate.Limiter
}

// NewLocator creates a candidate locator. catalog and index are optional:
// without the catalog the identifier and unique-hash tiers are skipped,
// without the index everything between the direct probe and the degraded
// scan is.
func NewLocator(
	vault driven.VaultStore,
	snapshots driven.SnapshotStore,
	catalog driven.DeviceCatalog,
	index driven.ImportIndex,
	analyzer *Analyzer,
	cfg LocatorConfig,
) *Locator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 15 * time.Second
	}
	if cfg.ScanRate <= 0 {
		cfg.ScanRate = rate.Limit(200)
	}
	return &Locator{
		vault:         vault,
		snapshots:     snapshots,
		catalog:       catalog,
		index:         index,
		analyzer:      analyzer,
		highlightsDir: strings.TrimSuffix(cfg.HighlightsDir, "/"),
		workers:       cfg.Workers,
		scanTimeout:   cfg.ScanTimeout,
		scanLimiter:   rate.NewLimiter(cfg.ScanRate, 16),
	}
}

// Locate runs the tiers in cost order and returns the analysed matches of
// the first tier that produced any, best first. An empty result with full
// confidence means the book is certainly new; with partial confidence it
// means the degraded scan ran out of time before covering the vault.
//
//nolint:gocyclo // Tier sequence is a deliberate cost-ordered cascade
func (l *Locator) Locate(ctx context.Context, item domain.ImportItem) (domain.LocateResult, error) {
	book := item.Book

	// 1. Direct probe: the exact path the naming convention would use.
	if paths := l.probe(ctx, book); len(paths) > 0 {
		logger.Debug("Locate %q: direct probe hit", book.Title)
		if matches := l.analyzeCandidates(ctx, paths, item.Annotations); len(matches) > 0 {
			return l.finish(matches, domain.ConfidenceFull), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.LocateResult{}, err
	}

	// 2. Strong identifiers, resolved through the device catalog to a
	// content hash, then to previously imported paths.
	if paths := l.byIdentifiers(ctx, book); len(paths) > 0 {
		logger.Debug("Locate %q: identifier tier yielded %d candidate(s)", book.Title, len(paths))
		if matches := l.analyzeCandidates(ctx, paths, item.Annotations); len(matches) > 0 {
			return l.finish(matches, domain.ConfidenceFull), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.LocateResult{}, err
	}

	// 3. Content hash, only when the device reports it globally unique.
	if paths := l.byUniqueHash(ctx, book); len(paths) > 0 {
		logger.Debug("Locate %q: unique-hash tier yielded %d candidate(s)", book.Title, len(paths))
		if matches := l.analyzeCandidates(ctx, paths, item.Annotations); len(matches) > 0 {
			return l.finish(matches, domain.ConfidenceFull), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.LocateResult{}, err
	}

	// 4. Persistent book-key index, distrusted mid-rebuild.
	if paths := l.byBookKey(ctx, book); len(paths) > 0 {
		logger.Debug("Locate %q: book-key index yielded %d candidate(s)", book.Title, len(paths))
		if matches := l.analyzeCandidates(ctx, paths, item.Annotations); len(matches) > 0 {
			return l.finish(matches, domain.ConfidenceFull), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.LocateResult{}, err
	}

	// 5. Degraded scan over the whole vault, timeout-bounded.
	paths, complete := l.scan(ctx, book)
	if err := ctx.Err(); err != nil {
		return domain.LocateResult{}, err
	}
	confidence := domain.ConfidenceFull
	if !complete {
		confidence = domain.ConfidencePartial
	}
	if len(paths) > 0 {
		logger.Debug("Locate %q: degraded scan yielded %d candidate(s)", book.Title, len(paths))
		if matches := l.analyzeCandidates(ctx, paths, item.Annotations); len(matches) > 0 {
			return l.finish(matches, confidence), nil
		}
	}

	return domain.LocateResult{Confidence: confidence}, nil
}

// probe checks the conventional path for this identity.
func (l *Locator) probe(ctx context.Context, book domain.BookIdentity) []string {
	p := stdpath.Join(l.highlightsDir, book.FileStem()+".md")
	ok, err := l.vault.Exists(ctx, p)
	if err != nil {
		logger.Debug("Probe %s: %v", p, err)
		return nil
	}
	if !ok {
		return nil
	}
	return []string{p}
}

// byIdentifiers resolves strong identifiers to content hashes through the
// device catalog, then to paths through the import index.
func (l *Locator) byIdentifiers(ctx context.Context, book domain.BookIdentity) []string {
	if l.catalog == nil || l.index == nil || !book.HasStrongIdentifiers() {
		return nil
	}

	var paths []string
	for _, id := range book.Identifiers {
		record, err := l.catalog.FindByIdentifier(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrCapabilityUnavailable) {
				logger.Debug("Device catalog cannot resolve identifiers: %v", err)
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Debug("Identifier %s:%s lookup: %v", id.Scheme, id.Value, err)
			}
			continue
		}
		if record.ContentHash == "" {
			continue
		}
		found, err := l.index.PathsForHash(ctx, record.ContentHash)
		if err != nil {
			logger.Debug("Index lookup for hash %s: %v", record.ContentHash, err)
			continue
		}
		paths = append(paths, found...)
	}
	return dedupePaths(paths)
}

// byUniqueHash uses the book's own content hash when the device catalog
// reports it unique.
func (l *Locator) byUniqueHash(ctx context.Context, book domain.BookIdentity) []string {
	if l.catalog == nil || l.index == nil || book.ContentHash == "" {
		return nil
	}

	count, err := l.catalog.CountByContentHash(ctx, book.ContentHash)
	if err != nil {
		logger.Debug("Content hash count: %v", err)
		return nil
	}
	if count != 1 {
		return nil
	}
	paths, err := l.index.PathsForHash(ctx, book.ContentHash)
	if err != nil {
		logger.Debug("Index lookup for hash %s: %v", book.ContentHash, err)
		return nil
	}
	return dedupePaths(paths)
}

// byBookKey queries the persistent index by the low-confidence key.
func (l *Locator) byBookKey(ctx context.Context, book domain.BookIdentity) []string {
	if l.index == nil {
		return nil
	}

	ready, err := l.index.Ready(ctx)
	if err != nil || !ready {
		logger.Debug("Import index not trustworthy, skipping key tier")
		return nil
	}
	paths, err := l.index.PathsForKey(ctx, book.Key())
	if err != nil {
		logger.Debug("Index lookup for key: %v", err)
		return nil
	}
	return dedupePaths(paths)
}

// scan walks the whole vault under the scan timeout, matching filenames and
// frontmatter against the book key. The bool result reports whether the
// walk covered everything.
func (l *Locator) scan(ctx context.Context, book domain.BookIdentity) ([]string, bool) {
	scanCtx, cancel := context.WithTimeout(ctx, l.scanTimeout)
	defer cancel()

	wantStem := domain.NormaliseText(book.FileStem())
	wantKey := book.Key()

	var paths []string
	err := l.vault.Walk(scanCtx, "", func(p string) error {
		if err := l.scanLimiter.Wait(scanCtx); err != nil {
			return err
		}

		stem := strings.TrimSuffix(stdpath.Base(p), ".md")
		if domain.NormaliseText(stem) == wantStem {
			paths = append(paths, p)
			return nil
		}

		content, err := l.vault.Read(scanCtx, p)
		if err != nil {
			return nil
		}
		fm, _, err := frontmatter.Parse(content)
		if err != nil || fm.Title == "" {
			return nil
		}
		candidate := domain.BookIdentity{Title: fm.Title, Authors: fm.Authors}
		if candidate.Key() == wantKey {
			paths = append(paths, p)
		}
		return nil
	})

	if err == nil {
		return paths, true
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warn("Vault scan timed out after %s; duplicate search is partial", l.scanTimeout)
		return paths, false
	}
	if ctx.Err() == nil {
		logger.Debug("Vault scan stopped: %v", err)
	}
	return paths, false
}

// analyzeCandidates runs the analyzer over every candidate path under a
// bounded worker pool and returns the analysable ones.
func (l *Locator) analyzeCandidates(ctx context.Context, paths []string, incoming []domain.Annotation) []domain.DuplicateMatch {
	workers := l.workers
	if workers > len(paths) {
		workers = len(paths)
	}

	pathCh := make(chan string)
	resultCh := make(chan domain.DuplicateMatch, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pathCh {
				match, err := l.analyzeOne(ctx, p, incoming)
				if err != nil {
					logger.Debug("Candidate %s not analysable: %v", p, err)
					continue
				}
				resultCh <- match
			}
		}()
	}

feed:
	for _, p := range paths {
		select {
		case pathCh <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(pathCh)
	wg.Wait()
	close(resultCh)

	var matches []domain.DuplicateMatch
	for m := range resultCh {
		matches = append(matches, m)
	}
	return matches
}

// analyzeOne reads and classifies a single candidate, then fills in whether
// a trustworthy merge baseline exists for it.
func (l *Locator) analyzeOne(ctx context.Context, p string, incoming []domain.Annotation) (domain.DuplicateMatch, error) {
	content, err := l.vault.Read(ctx, p)
	if err != nil {
		return domain.DuplicateMatch{}, fmt.Errorf("read candidate: %w", err)
	}
	fm, body, err := frontmatter.Parse(content)
	if err != nil {
		return domain.DuplicateMatch{}, fmt.Errorf("parse candidate header: %w", err)
	}

	doc := domain.DocumentRecord{Path: p, UID: fm.UID, Body: body, Frontmatter: fm}
	match, err := l.analyzer.Analyze(doc, incoming)
	if err != nil {
		return domain.DuplicateMatch{}, err
	}

	// A document still carrying conflict markers must not be merged over
	// mechanically, whatever its snapshot state.
	match.CanMergeSafely = !fm.HasUnresolvedConflicts() && l.hasUsableBaseline(ctx, fm.UID)
	return match, nil
}

// hasUsableBaseline reports whether a verified snapshot exists for uid.
func (l *Locator) hasUsableBaseline(ctx context.Context, uid string) bool {
	if uid == "" {
		return false
	}
	if _, err := uuid.Parse(uid); err != nil {
		return false
	}
	if _, err := l.snapshots.Read(ctx, uid); err != nil {
		if errors.Is(err, domain.ErrIntegrityFailed) {
			logger.Warn("Snapshot for %s failed its integrity check; treating as missing", uid)
		}
		return false
	}
	return true
}

// finish orders matches best-first and stamps the tier confidence on each.
// Best = fewest combined new and modified highlights; ties prefer documents
// inside the highlights folder, then the lexically smaller path.
func (l *Locator) finish(matches []domain.DuplicateMatch, confidence domain.MatchConfidence) domain.LocateResult {
	sort.SliceStable(matches, func(i, j int) bool {
		ci := matches[i].NewCount + matches[i].ModifiedCount
		cj := matches[j].NewCount + matches[j].ModifiedCount
		if ci != cj {
			return ci < cj
		}
		ti, tj := l.inTargetFolder(matches[i].Document.Path), l.inTargetFolder(matches[j].Document.Path)
		if ti != tj {
			return ti
		}
		return matches[i].Document.Path < matches[j].Document.Path
	})
	for i := range matches {
		matches[i].Confidence = confidence
	}
	return domain.LocateResult{Matches: matches, Confidence: confidence}
}

func (l *Locator) inTargetFolder(p string) bool {
	if l.highlightsDir == "" {
		return stdpath.Dir(p) == "."
	}
	return strings.HasPrefix(p, l.highlightsDir+"/")
}

func dedupePaths(paths []string) []string {
	if len(paths) < 2 {
		return paths
	}
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
