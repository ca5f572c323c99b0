// Package review aggregates reviewer critiques per routing cycle and
// decides when a document's review is complete.
package review

import (
	"context"
	"sort"

	"github.com/docflow/docflow/internal/document"
	"github.com/docflow/docflow/internal/document/repository"
)

// CycleStatus describes the review progress of the current routing cycle.
type CycleStatus struct {
	Cycle     int      `json:"cycle"`
	Submitted []string `json:"submitted"`
	Pending   []string `json:"pending"`
	Complete  bool     `json:"complete"`
}

// Aggregator owns the critique records of a document; they are persisted
// through the same store as the document itself. Quorum policy: every
// reviewer in the current assignee set must have exactly one critique for
// the current cycle. An escalated cycle counts as complete without review.
type Aggregator struct {
	store repository.Store
}

func NewAggregator(store repository.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Status reports who has submitted and who is pending for the document's
// current cycle.
func (a *Aggregator) Status(ctx context.Context, doc *document.Document) (CycleStatus, error) {
	st := CycleStatus{Cycle: doc.Cycle}
	if doc.Escalated {
		st.Complete = true
		return st, nil
	}
	critiques, err := a.store.Critiques(ctx, doc.ID, doc.Cycle)
	if err != nil {
		return st, err
	}
	have := make(map[string]bool, len(critiques))
	for _, c := range critiques {
		have[c.Reviewer] = true
	}
	for _, r := range doc.Assignees {
		if have[r] {
			st.Submitted = append(st.Submitted, r)
		} else {
			st.Pending = append(st.Pending, r)
		}
	}
	sort.Strings(st.Submitted)
	sort.Strings(st.Pending)
	st.Complete = len(doc.Assignees) > 0 && len(st.Pending) == 0
	return st, nil
}

// IsComplete reports whether every assigned reviewer has submitted a
// critique for the current cycle (or the cycle was escalated).
func (a *Aggregator) IsComplete(ctx context.Context, doc *document.Document) (bool, error) {
	st, err := a.Status(ctx, doc)
	if err != nil {
		return false, err
	}
	return st.Complete, nil
}

// ValidateSubmission checks that reviewer may add a critique to the
// document's current cycle: assigned, and not already submitted.
func (a *Aggregator) ValidateSubmission(ctx context.Context, doc *document.Document, reviewer string) error {
	if !doc.Assigned(reviewer) {
		return document.ErrNotAssigned
	}
	critiques, err := a.store.Critiques(ctx, doc.ID, doc.Cycle)
	if err != nil {
		return err
	}
	for _, c := range critiques {
		if c.Reviewer == reviewer {
			return document.ErrDuplicateCritique
		}
	}
	return nil
}
