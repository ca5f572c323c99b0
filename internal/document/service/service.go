// Package service implements the workflow engine: it validates requested
// transitions against the role gate and the review aggregator, applies
// them through the store's compare-and-swap commit and appends exactly one
// history entry per transition.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/docflow/docflow/internal/document"
	"github.com/docflow/docflow/internal/document/repository"
	"github.com/docflow/docflow/internal/review"
	"github.com/docflow/docflow/internal/rolegate"
	"github.com/docflow/docflow/pkg/logger"
	"github.com/docflow/docflow/pkg/metrics"
)

// Stats is a per-state breakdown of the documents visible to a caller.
type Stats struct {
	Total       int `json:"total"`
	Submitted   int `json:"submitted"`
	Routed      int `json:"routed"`
	UnderReview int `json:"underReview"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
}

// Service is the workflow engine's external contract. Every operation
// takes an already-authenticated actor; the engine performs authorization
// via the role gate but never verifies credentials. On a version conflict
// callers receive document.ErrConflict and must retry from a fresh load;
// the engine never retries internally.
type Service interface {
	Submit(ctx context.Context, actor document.Actor, title, attachmentKey string) (*document.Document, error)
	Route(ctx context.Context, actor document.Actor, id string, assignees []string, comment string) (*document.Document, error)
	Critique(ctx context.Context, actor document.Actor, id string, verdict document.Verdict, score *int, comment, attachmentKey string) (*document.Document, error)
	Escalate(ctx context.Context, actor document.Actor, id, comment string) (*document.Document, error)
	Decide(ctx context.Context, actor document.Actor, id string, decision document.Decision, comment string) (*document.Document, error)
	Delete(ctx context.Context, actor document.Actor, id string) error
	Get(ctx context.Context, actor document.Actor, id string, audit bool) (*document.Document, []document.HistoryEntry, error)
	Critiques(ctx context.Context, actor document.Actor, id string) ([]document.Critique, error)
	ReviewStatus(ctx context.Context, actor document.Actor, id string) (review.CycleStatus, error)
	List(ctx context.Context, actor document.Actor, f repository.Filter) ([]*document.Document, error)
	Stats(ctx context.Context, actor document.Actor) (Stats, error)
}

type engine struct {
	store   repository.Store
	gate    *rolegate.Gate
	reviews *review.Aggregator
}

// New builds the workflow engine on top of the given store.
func New(store repository.Store) Service {
	return &engine{
		store:   store,
		gate:    rolegate.New(),
		reviews: review.NewAggregator(store),
	}
}

// NewMemoryService returns an engine backed by the in-memory store.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo())
}

func (e *engine) Submit(ctx context.Context, actor document.Actor, title, attachmentKey string) (*document.Document, error) {
	if actor.Role != document.RoleCitizen {
		return nil, e.fail(document.ActionSubmit, "", document.ErrForbidden)
	}
	if title == "" {
		return nil, e.fail(document.ActionSubmit, "", fmt.Errorf("title required: %w", document.ErrValidation))
	}
	doc := &document.Document{
		Title:         title,
		Owner:         actor.ID,
		State:         document.StateSubmitted,
		Cycle:         1,
		AttachmentKey: attachmentKey,
	}
	entry := e.entry(doc, actor, document.ActionSubmit, document.StateSubmitted, "document submitted")
	if err := e.store.Create(ctx, doc, entry); err != nil {
		return nil, e.fail(document.ActionSubmit, doc.ID, err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(document.ActionSubmit)).Inc()
	logger.Infof("document %s submitted by %s", doc.ID, actor.ID)
	return doc, nil
}

func (e *engine) Route(ctx context.Context, actor document.Actor, id string, assignees []string, comment string) (*document.Document, error) {
	doc, err := e.loadFor(ctx, actor, document.ActionRoute, id)
	if err != nil {
		return nil, err
	}
	assignees = dedupe(assignees)
	if len(assignees) == 0 {
		return nil, e.fail(document.ActionRoute, id, fmt.Errorf("assignee set must not be empty: %w", document.ErrValidation))
	}
	from := doc.State
	doc.State = document.StateRouted
	doc.Assignees = assignees
	doc.Escalated = false
	// a re-route may shrink the assignee set to reviewers who already
	// submitted this cycle; the quorum is then met on commit and the
	// document moves on rather than sit in ROUTED with nothing pending
	status, err := e.reviews.Status(ctx, doc)
	if err != nil {
		return nil, e.fail(document.ActionRoute, id, err)
	}
	if status.Complete {
		doc.State = document.StateUnderReview
	}
	if comment == "" {
		comment = fmt.Sprintf("routed to %d reviewer(s)", len(assignees))
	}
	entry := e.entry(doc, actor, document.ActionRoute, doc.State, comment)
	entry.FromState = from
	if err := e.store.Commit(ctx, doc, entry, nil); err != nil {
		return nil, e.fail(document.ActionRoute, id, err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(document.ActionRoute)).Inc()
	logger.Infof("document %s routed by %s to %v", id, actor.ID, assignees)
	return doc, nil
}

func (e *engine) Critique(ctx context.Context, actor document.Actor, id string, verdict document.Verdict, score *int, comment, attachmentKey string) (*document.Document, error) {
	doc, err := e.loadFor(ctx, actor, document.ActionCritique, id)
	if err != nil {
		return nil, err
	}
	if verdict != document.VerdictApprove && verdict != document.VerdictRequestChanges {
		return nil, e.fail(document.ActionCritique, id, fmt.Errorf("unknown verdict %q: %w", verdict, document.ErrValidation))
	}
	if score != nil && (*score < 0 || *score > 100) {
		return nil, e.fail(document.ActionCritique, id, fmt.Errorf("score must be 0-100: %w", document.ErrValidation))
	}
	if !doc.Assigned(actor.ID) {
		return nil, e.fail(document.ActionCritique, id, document.ErrNotAssigned)
	}

	critique := &document.Critique{
		DocumentID:    doc.ID,
		Reviewer:      actor.ID,
		Cycle:         doc.Cycle,
		Verdict:       verdict,
		Score:         score,
		Comment:       comment,
		AttachmentKey: attachmentKey,
		CreatedAt:     time.Now().UTC(),
	}
	from := doc.State

	if verdict == document.VerdictRequestChanges {
		// reopen: the critique is recorded against the cycle it reviewed,
		// then the cycle counter moves on so stale critiques never satisfy
		// the new quorum
		doc.Cycle++
		doc.State = document.StateRouted
		doc.Escalated = false
		if comment == "" {
			comment = "changes requested, review cycle reopened"
		}
		entry := e.entry(doc, actor, document.ActionCritique, doc.State, comment)
		entry.FromState = from
		if err := e.store.Commit(ctx, doc, entry, critique); err != nil {
			return nil, e.fail(document.ActionCritique, id, err)
		}
		metrics.WorkflowTransitions.WithLabelValues(string(document.ActionCritique)).Inc()
		logger.Infof("document %s reopened for cycle %d by %s", id, doc.Cycle, actor.ID)
		return doc, nil
	}

	if err := e.reviews.ValidateSubmission(ctx, doc, actor.ID); err != nil {
		return nil, e.fail(document.ActionCritique, id, err)
	}
	status, err := e.reviews.Status(ctx, doc)
	if err != nil {
		return nil, e.fail(document.ActionCritique, id, err)
	}
	// quorum counted with this critique included
	if remainingAfter(status.Pending, actor.ID) == 0 {
		doc.State = document.StateUnderReview
	}
	if comment == "" {
		comment = fmt.Sprintf("critique submitted by %s", actor.ID)
	}
	entry := e.entry(doc, actor, document.ActionCritique, doc.State, comment)
	entry.FromState = from
	if err := e.store.Commit(ctx, doc, entry, critique); err != nil {
		return nil, e.fail(document.ActionCritique, id, err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(document.ActionCritique)).Inc()
	logger.Infof("document %s critiqued by %s (%s)", id, actor.ID, verdict)
	return doc, nil
}

func (e *engine) Escalate(ctx context.Context, actor document.Actor, id, comment string) (*document.Document, error) {
	doc, err := e.loadFor(ctx, actor, document.ActionEscalate, id)
	if err != nil {
		return nil, err
	}
	from := doc.State
	doc.State = document.StateUnderReview
	doc.Escalated = true
	if comment == "" {
		comment = "escalated without review"
	}
	entry := e.entry(doc, actor, document.ActionEscalate, doc.State, comment)
	entry.FromState = from
	if err := e.store.Commit(ctx, doc, entry, nil); err != nil {
		return nil, e.fail(document.ActionEscalate, id, err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(document.ActionEscalate)).Inc()
	logger.Infof("document %s escalated by %s", id, actor.ID)
	return doc, nil
}

func (e *engine) Decide(ctx context.Context, actor document.Actor, id string, decision document.Decision, comment string) (*document.Document, error) {
	doc, err := e.loadFor(ctx, actor, document.ActionDecide, id)
	if err != nil {
		return nil, err
	}
	if decision != document.DecisionApprove && decision != document.DecisionReject {
		return nil, e.fail(document.ActionDecide, id, fmt.Errorf("unknown decision %q: %w", decision, document.ErrValidation))
	}
	complete, err := e.reviews.IsComplete(ctx, doc)
	if err != nil {
		return nil, e.fail(document.ActionDecide, id, err)
	}
	if !complete {
		return nil, e.fail(document.ActionDecide, id, document.ErrReviewIncomplete)
	}
	from := doc.State
	if decision == document.DecisionApprove {
		doc.State = document.StateApproved
	} else {
		doc.State = document.StateRejected
	}
	if comment == "" {
		comment = fmt.Sprintf("decision: %s", decision)
	}
	entry := e.entry(doc, actor, document.ActionDecide, doc.State, comment)
	entry.FromState = from
	if err := e.store.Commit(ctx, doc, entry, nil); err != nil {
		return nil, e.fail(document.ActionDecide, id, err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(document.ActionDecide)).Inc()
	logger.Infof("document %s decided %s by %s", id, decision, actor.ID)
	return doc, nil
}

func (e *engine) Delete(ctx context.Context, actor document.Actor, id string) error {
	doc, _, err := e.store.Load(ctx, id, false)
	if err != nil {
		return e.fail(document.ActionSoftDelete, id, err)
	}
	if !e.gate.Allowed(actor.Role, document.ActionSoftDelete, doc.State) {
		return e.fail(document.ActionSoftDelete, id, document.ErrForbidden)
	}
	doc.Deleted = true
	doc.DeletedAt = time.Now().UTC()
	entry := e.entry(doc, actor, document.ActionSoftDelete, doc.State, "document deleted")
	entry.FromState = doc.State
	if err := e.store.Commit(ctx, doc, entry, nil); err != nil {
		return e.fail(document.ActionSoftDelete, id, err)
	}
	metrics.WorkflowTransitions.WithLabelValues(string(document.ActionSoftDelete)).Inc()
	logger.Infof("document %s soft-deleted by %s", id, actor.ID)
	return nil
}

func (e *engine) Get(ctx context.Context, actor document.Actor, id string, audit bool) (*document.Document, []document.HistoryEntry, error) {
	if audit && actor.Role != document.RoleSecretary && actor.Role != document.RoleChairman {
		return nil, nil, fmt.Errorf("get %s: %w", id, document.ErrForbidden)
	}
	doc, hist, err := e.store.Load(ctx, id, audit)
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: %w", id, err)
	}
	if !e.visible(doc, actor) {
		// same answer as a missing document so existence does not leak
		return nil, nil, fmt.Errorf("get %s: %w", id, document.ErrNotFound)
	}
	return doc, hist, nil
}

func (e *engine) Critiques(ctx context.Context, actor document.Actor, id string) ([]document.Critique, error) {
	doc, _, err := e.Get(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	return e.store.Critiques(ctx, doc.ID, -1)
}

func (e *engine) ReviewStatus(ctx context.Context, actor document.Actor, id string) (review.CycleStatus, error) {
	doc, _, err := e.Get(ctx, actor, id, false)
	if err != nil {
		return review.CycleStatus{}, err
	}
	return e.reviews.Status(ctx, doc)
}

func (e *engine) List(ctx context.Context, actor document.Actor, f repository.Filter) ([]*document.Document, error) {
	return e.store.List(ctx, actor, f)
}

func (e *engine) Stats(ctx context.Context, actor document.Actor) (Stats, error) {
	docs, err := e.store.List(ctx, actor, repository.Filter{})
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Total: len(docs)}
	for _, d := range docs {
		switch d.State {
		case document.StateSubmitted:
			s.Submitted++
		case document.StateRouted:
			s.Routed++
		case document.StateUnderReview:
			s.UnderReview++
		case document.StateApproved:
			s.Approved++
		case document.StateRejected:
			s.Rejected++
		}
	}
	return s, nil
}

// loadFor performs the shared validation prefix of every transition:
// document exists and is not deleted, not terminal (except soft delete),
// and the role gate permits the action.
func (e *engine) loadFor(ctx context.Context, actor document.Actor, action document.Action, id string) (*document.Document, error) {
	doc, _, err := e.store.Load(ctx, id, false)
	if err != nil {
		return nil, e.fail(action, id, err)
	}
	if doc.State.Terminal() {
		return nil, e.fail(action, id, document.ErrTerminalState)
	}
	if !e.gate.Allowed(actor.Role, action, doc.State) {
		return nil, e.fail(action, id, document.ErrForbidden)
	}
	return doc, nil
}

func (e *engine) visible(doc *document.Document, actor document.Actor) bool {
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

func (e *engine) entry(doc *document.Document, actor document.Actor, action document.Action, to document.State, comment string) document.HistoryEntry {
	return document.HistoryEntry{
		DocumentID: doc.ID,
		Actor:      actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		FromState:  doc.State,
		ToState:    to,
		Comment:    comment,
		Cycle:      doc.Cycle,
		Timestamp:  time.Now().UTC(),
	}
}

func (e *engine) fail(action document.Action, id string, err error) error {
	metrics.WorkflowTransitionFailures.WithLabelValues(document.Kind(err)).Inc()
	if id == "" {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s %s: %w", action, id, err)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func remainingAfter(pending []string, reviewer string) int {
	n := 0
	for _, p := range pending {
		if p != reviewer {
			n++
		}
	}
	return n
}
