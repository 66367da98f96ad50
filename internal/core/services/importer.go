package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/core/ports/driven"
	"github.com/t5k6/marginalia/internal/core/ports/driving"
	"github.com/t5k6/marginalia/internal/frontmatter"
	"github.com/t5k6/marginalia/internal/logger"
)

// ImporterConfig carries the batch-level tunables.
type ImporterConfig struct {
	// HighlightsDir is the vault folder new documents are created in.
	HighlightsDir string

	// AutoMerge enables the no-prompt fast path for safe updates.
	AutoMerge bool

	// Workers bounds the import worker pool. Zero means one worker per CPU.
	Workers int

	// DefaultChoice, when set, answers every duplicate prompt without
	// asking. Headless runs use it to stay non-interactive.
	DefaultChoice domain.DuplicateChoice
}

// Importer runs the import pipeline for a batch of books: locate a
// duplicate, classify it, pick a strategy, merge, and commit. Items run
// concurrently under a bounded pool; the lock arenas inside the identity
// resolver and committer serialise the moments two items touch the same
// document or snapshot.
type Importer struct {
	locator   *Locator
	identity  *IdentityResolver
	merger    *MergeEngine
	committer *Committer
	prompter  driven.DuplicatePrompter
	index     driven.ImportIndex

	cfg ImporterConfig
}

// Ensure Importer implements the interface.
var _ driving.ImportService = (*Importer)(nil)

// NewImporter creates the import orchestrator. index is optional; without
// it imports still work, they just locate more slowly next time.
func NewImporter(
	locator *Locator,
	identity *IdentityResolver,
	merger *MergeEngine,
	committer *Committer,
	prompter driven.DuplicatePrompter,
	index driven.ImportIndex,
	cfg ImporterConfig,
) *Importer {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Importer{
		locator:   locator,
		identity:  identity,
		merger:    merger,
		committer: committer,
		prompter:  prompter,
		index:     index,
		cfg:       cfg,
	}
}

// batchSession is the only mutable state shared across one batch: the
// session record, the sticky apply-to-all choice, and the once-per-session
// capability warning. The prompt mutex doubles as the prompt serialisation
// queue, so at most one duplicate prompt is open at a time.
type batchSession struct {
	session domain.ImportSession

	promptMu sync.Mutex
	sticky   domain.DuplicateChoice

	capabilityOnce sync.Once
}

// EnsureID delegates to the identity resolver.
func (s *Importer) EnsureID(ctx context.Context, doc domain.DocumentRecord) (string, error) {
	return s.identity.EnsureID(ctx, doc)
}

// FindBestMatch locates and analyses the strongest duplicate candidate for
// one book. A nil match means the book is new to the vault.
func (s *Importer) FindBestMatch(ctx context.Context, item domain.ImportItem) (*domain.DuplicateMatch, error) {
	located, err := s.locator.Locate(ctx, item)
	if err != nil {
		return nil, err
	}
	if len(located.Matches) == 0 {
		return nil, nil
	}
	best := located.Matches[0]
	return &best, nil
}

// ImportBatch processes every item through the full pipeline and reports
// per-item outcomes. One item's failure never aborts the batch; cancelled
// items are recorded as failures and the context error is returned once
// everything in flight has drained.
func (s *Importer) ImportBatch(ctx context.Context, items []domain.ImportItem) (domain.BatchSummary, error) {
	state := &batchSession{
		session: domain.ImportSession{
			ID:            uuid.NewString(),
			StartedAt:     time.Now().UTC().Format(time.RFC3339),
			DefaultChoice: s.cfg.DefaultChoice,
		},
		sticky: s.cfg.DefaultChoice,
	}

	workers := s.cfg.Workers
	if workers > len(items) {
		workers = len(items)
	}
	if workers < 1 {
		workers = 1
	}
	logger.Info("Import session %s: %d book(s), %d worker(s)", state.session.ID, len(items), workers)

	type itemResult struct {
		book    domain.BookIdentity
		outcome domain.MergeOutcome
		err     error
	}

	itemCh := make(chan domain.ImportItem)
	resultCh := make(chan itemResult, len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				outcome, err := s.processItem(ctx, state, item)
				resultCh <- itemResult{book: item.Book, outcome: outcome, err: err}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case itemCh <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(itemCh)
	wg.Wait()
	close(resultCh)

	var summary domain.BatchSummary
	for r := range resultCh {
		if r.err == nil {
			summary.Outcomes = append(summary.Outcomes, r.outcome)
			continue
		}
		if errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded) {
			r.err = domain.ErrSessionCancelled
		}
		switch {
		case errors.Is(r.err, domain.ErrSessionCancelled):
			// Quiet: the user asked for this.
		case errors.Is(r.err, domain.ErrCapabilityUnavailable):
			state.capabilityOnce.Do(func() {
				logger.Error("Backup or snapshot storage is unavailable; merges cannot proceed safely: %v", r.err)
			})
		default:
			logger.Error("Import of %q failed: %v", r.book.Title, r.err)
		}
		summary.Failures = append(summary.Failures, domain.ItemFailure{Book: r.book, Err: r.err})
	}

	logger.Info("Session %s finished: %d created, %d auto-merged, %d merged, %d kept both, %d skipped, %d failed",
		state.session.ID,
		summary.Count(domain.OutcomeCreated),
		summary.Count(domain.OutcomeAutoMerged),
		summary.Count(domain.OutcomeMerged),
		summary.Count(domain.OutcomeKeptBoth),
		summary.Count(domain.OutcomeSkipped),
		len(summary.Failures))

	return summary, ctx.Err()
}

// processItem runs the pipeline for a single book.
func (s *Importer) processItem(ctx context.Context, state *batchSession, item domain.ImportItem) (domain.MergeOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.MergeOutcome{}, err
	}

	located, err := s.locator.Locate(ctx, item)
	if err != nil {
		return domain.MergeOutcome{}, err
	}
	if len(located.Matches) == 0 {
		if located.Confidence == domain.ConfidencePartial {
			logger.Warn("Duplicate search for %q did not cover the whole vault; creating a new document", item.Book.Title)
		}
		return s.createNew(ctx, item)
	}
	return s.handleDuplicate(ctx, state, item, located.Matches[0])
}

// handleDuplicate walks one match through strategy selection, the prompt
// queue when needed, and the chosen commit path.
//
//nolint:gocyclo // Orchestration function mirroring the decision state machine
func (s *Importer) handleDuplicate(ctx context.Context, state *batchSession, item domain.ImportItem, match domain.DuplicateMatch) (domain.MergeOutcome, error) {
	doc := match.Document

	// Exact matches are terminal before any strategy runs: re-importing an
	// unchanged book must not touch the vault at all.
	if match.Type == domain.MatchExact {
		logger.Debug("%q already fully imported at %s", item.Book.Title, doc.Path)
		return domain.MergeOutcome{Status: domain.OutcomeSkipped, Path: doc.Path, UID: doc.UID}, nil
	}

	choice := domain.ChoiceMerge
	auto := false
	switch SelectAction(s.cfg.AutoMerge, match) {
	case ActionAutoMerge:
		auto = true
		logger.Debug("Auto-merging %q into %s: %s", item.Book.Title, doc.Path, match.Describe())
	case ActionPrompt:
		var err error
		choice, err = s.resolveChoice(ctx, state, item.Book, match)
		if err != nil {
			return domain.MergeOutcome{}, err
		}
	}

	switch choice {
	case domain.ChoiceSkip:
		logger.Info("Skipping %q, duplicate of %s", item.Book.Title, doc.Path)
		return domain.MergeOutcome{Status: domain.OutcomeSkipped, Path: doc.Path, UID: doc.UID}, nil

	case domain.ChoiceKeepBoth:
		outcome, err := s.createNew(ctx, item)
		if err != nil {
			return domain.MergeOutcome{}, err
		}
		outcome.Status = domain.OutcomeKeptBoth
		return outcome, nil

	case domain.ChoiceReplace:
		return s.commitUpdate(ctx, item, match, domain.StrategyReplace, domain.OutcomeMerged)

	default:
		strategy := domain.StrategyTwoWay
		if match.CanMergeSafely {
			strategy = domain.StrategyThreeWay
		}
		status := domain.OutcomeMerged
		if auto {
			status = domain.OutcomeAutoMerged
		}
		return s.commitUpdate(ctx, item, match, strategy, status)
	}
}

// resolveChoice answers a duplicate prompt through the session's prompt
// queue, honouring a sticky apply-to-all choice.
func (s *Importer) resolveChoice(ctx context.Context, state *batchSession, book domain.BookIdentity, match domain.DuplicateMatch) (domain.DuplicateChoice, error) {
	state.promptMu.Lock()
	defer state.promptMu.Unlock()

	// A concurrent item may have set the sticky choice while this one was
	// waiting its turn in the queue, so check again under the lock.
	if state.sticky.IsValid() {
		return state.sticky, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	decision, err := s.prompter.ResolveDuplicate(ctx, book, match)
	if err != nil {
		return "", fmt.Errorf("resolve duplicate for %q: %w", book.Title, err)
	}
	if !decision.Choice.IsValid() {
		return "", fmt.Errorf("duplicate prompt returned unknown choice %q", decision.Choice)
	}
	if decision.ApplyToAll {
		state.sticky = decision.Choice
		logger.Info("Applying %q to every remaining duplicate this session", decision.Choice)
	}
	return decision.Choice, nil
}

// commitUpdate merges the incoming payload into an existing document and
// commits the result. The merge itself runs as a pure function inside the
// committer, under the document lock, against the document as re-read
// there.
func (s *Importer) commitUpdate(ctx context.Context, item domain.ImportItem, match domain.DuplicateMatch, strategy domain.MergeStrategy, status domain.OutcomeStatus) (domain.MergeOutcome, error) {
	// The snapshot is keyed by UID, so the document needs one first.
	uid, err := s.identity.EnsureID(ctx, match.Document)
	if err != nil {
		return domain.MergeOutcome{}, err
	}

	var applied domain.MergeStrategy
	var conflicted bool

	mergeFn := func(doc domain.DocumentRecord, baseline *domain.Snapshot) (MergedContent, error) {
		fm := doc.Frontmatter
		if fm.Title == "" {
			fm.Title = item.Book.Title
		}
		if len(fm.Authors) == 0 {
			fm.Authors = item.Book.Authors
		}

		applied = strategy
		if applied == domain.StrategyThreeWay && baseline == nil {
			// The baseline vanished between analysis and commit. Downgrade
			// rather than reconcile against a base we cannot trust.
			applied = domain.StrategyTwoWay
		}

		var body string
		switch applied {
		case domain.StrategyReplace:
			rendered, err := s.merger.RenderIncoming(item.Book, item.Annotations)
			if err != nil {
				return MergedContent{}, err
			}
			body = rendered

		case domain.StrategyThreeWay:
			theirs, err := s.merger.RenderIncoming(item.Book, item.Annotations)
			if err != nil {
				return MergedContent{}, err
			}
			body, conflicted = s.merger.ThreeWay(baseline.Body, doc.Body, theirs)

		default:
			merged, err := s.merger.TwoWay(item.Book, doc.Body, item.Annotations)
			if err != nil {
				return MergedContent{}, err
			}
			body = merged
		}

		if conflicted {
			fm.Conflicts = domain.ConflictsUnresolved
		} else {
			fm.Conflicts = ""
		}
		content, err := frontmatter.Render(fm, body)
		if err != nil {
			return MergedContent{}, err
		}
		return MergedContent{
			Content:    content,
			Body:       body,
			Conflicted: conflicted,
			Strategy:   applied,
		}, nil
	}

	updated, err := s.committer.UpdateNote(ctx, match.Document.Path, uid, mergeFn)
	if err != nil {
		return domain.MergeOutcome{}, err
	}

	if conflicted {
		logger.Warn("Merge of %q into %s left conflict regions; resolve the marked sections by hand", item.Book.Title, updated.Path)
	} else {
		logger.Info("Merged %q into %s (%s)", item.Book.Title, updated.Path, applied)
	}

	s.recordIndex(ctx, item.Book, updated.Path)
	return domain.MergeOutcome{
		Status:             status,
		Path:               updated.Path,
		UID:                updated.UID,
		Strategy:           applied,
		Conflicted:         conflicted,
		AnnotationsWritten: s.merger.CountHighlights(updated.Body),
	}, nil
}

// createNew renders the payload as a fresh document in the highlights
// folder.
func (s *Importer) createNew(ctx context.Context, item domain.ImportItem) (domain.MergeOutcome, error) {
	body, err := s.merger.RenderIncoming(item.Book, item.Annotations)
	if err != nil {
		return domain.MergeOutcome{}, err
	}

	fm := domain.Frontmatter{Title: item.Book.Title, Authors: item.Book.Authors}
	rec, err := s.committer.CreateNote(ctx, s.cfg.HighlightsDir, item.Book.FileStem(), fm, body)
	if err != nil {
		return domain.MergeOutcome{}, err
	}

	logger.Info("Created %s (%d annotation(s))", rec.Path, len(item.Annotations))
	s.recordIndex(ctx, item.Book, rec.Path)
	return domain.MergeOutcome{
		Status:             domain.OutcomeCreated,
		Path:               rec.Path,
		UID:                rec.UID,
		AnnotationsWritten: len(item.Annotations),
	}, nil
}

// recordIndex teaches the locate index where this book now lives. Failures
// only cost speed on the next import, so they are not surfaced.
func (s *Importer) recordIndex(ctx context.Context, book domain.BookIdentity, path string) {
	if s.index == nil {
		return
	}
	if err := s.index.Record(context.WithoutCancel(ctx), book, path); err != nil {
		logger.Debug("Index record for %s: %v", path, err)
	}
}
