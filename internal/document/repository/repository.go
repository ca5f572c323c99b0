package repository

import (
	"context"

	"github.com/docflow/docflow/internal/document"
)

// Filter narrows a listing. Zero value lists everything visible to the
// actor's role scope.
type Filter struct {
	States []document.State
	Owner  string
}

// Store is the persistence contract for documents, their history and
// critiques. The store is the sole writer of persisted records; history
// is append-only and soft-deleted records are never physically removed.
//
// Commit is a compare-and-swap on Document.Version: it succeeds only when
// the stored version equals the version the caller loaded, bumping it by
// one, and fails with document.ErrConflict otherwise. The document update,
// the history append and the optional critique append are one atomic unit.
type Store interface {
	// Create persists a brand-new document and its initial history entry.
	Create(ctx context.Context, doc *document.Document, entry document.HistoryEntry) error

	// Load returns the document and its full ordered history. Fails with
	// document.ErrNotFound when absent, document.ErrGone when soft-deleted
	// and includeDeleted is false. With includeDeleted (audit mode) the
	// record is returned regardless of the deletion flag.
	Load(ctx context.Context, id string, includeDeleted bool) (*document.Document, []document.HistoryEntry, error)

	// Commit applies one transition: document state, one history entry and
	// optionally one critique (nil when the transition carries none).
	Commit(ctx context.Context, doc *document.Document, entry document.HistoryEntry, critique *document.Critique) error

	// List returns non-deleted documents visible to the actor: citizens
	// see their own, reviewers see documents they are assigned to,
	// secretaries and chairmen see everything.
	List(ctx context.Context, actor document.Actor, f Filter) ([]*document.Document, error)

	// Critiques returns the critiques recorded for one routing cycle of a
	// document, in submission order. A negative cycle returns all cycles.
	Critiques(ctx context.Context, docID string, cycle int) ([]document.Critique, error)
}

func visible(doc *document.Document, actor document.Actor) bool {
	switch actor.Role {
	case document.RoleCitizen:
		return doc.Owner == actor.ID
	case document.RoleReviewer:
		return doc.Assigned(actor.ID)
	case document.RoleSecretary, document.RoleChairman:
		return true
	}
	return false
}

func matches(doc *document.Document, f Filter) bool {
	if f.Owner != "" && doc.Owner != f.Owner {
		return false
	}
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if doc.State == s {
			return true
		}
	}
	return false
}
