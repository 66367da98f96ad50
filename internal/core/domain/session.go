package domain

// ImportItem is one book's payload within an import batch: the identity the
// device reported and the annotations that came with it.
type ImportItem struct {
	// Book identifies the title on the device.
	Book BookIdentity

	// Annotations is the device's full set for the book, unsorted.
	Annotations []Annotation

	// SourcePath is where the payload came from (device mount path or
	// metadata file), recorded for logs and the import index.
	SourcePath string
}

// ImportSession carries the cross-item state of one import run. Items
// execute concurrently; the session default is the one piece of state they
// share, set when a prompt answer arrives with "apply to all".
type ImportSession struct {
	// ID identifies the run in logs and the import index.
	ID string

	// StartedAt is the run start timestamp ("2006-01-02T15:04:05Z07:00").
	StartedAt string

	// DefaultChoice, when valid, answers every subsequent duplicate prompt
	// in the session without asking.
	DefaultChoice DuplicateChoice
}

// ItemFailure records one book that could not be imported, with the book
// kept so the summary can name it.
type ItemFailure struct {
	Book BookIdentity
	Err  error
}

// BatchSummary aggregates the outcomes of an import run.
type BatchSummary struct {
	// Outcomes holds one entry per successfully processed book.
	Outcomes []MergeOutcome

	// Failures holds one entry per book whose import returned an error.
	Failures []ItemFailure
}

// Count returns the number of outcomes with the given status.
func (s BatchSummary) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Conflicted returns the paths of outcomes that left unresolved conflict
// regions, for the end-of-run report.
func (s BatchSummary) Conflicted() []string {
	var paths []string
	for _, o := range s.Outcomes {
		if o.Conflicted {
			paths = append(paths, o.Path)
		}
	}
	return paths
}
