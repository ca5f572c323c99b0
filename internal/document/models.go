package document

import "time"

// State is the workflow state of a document. Deleted is a flag on the
// document, not a state (see Document.Deleted).
type State string

const (
	StateSubmitted   State = "SUBMITTED"
	StateRouted      State = "ROUTED"
	StateUnderReview State = "UNDER_REVIEW"
	StateApproved    State = "APPROVED"
	StateRejected    State = "REJECTED"
)

// Terminal reports whether no further workflow transition is possible.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// Role is the closed set of actor roles known to the workflow.
type Role string

const (
	RoleCitizen   Role = "CITIZEN"
	RoleSecretary Role = "SECRETARY"
	RoleReviewer  Role = "REVIEWER"
	RoleChairman  Role = "CHAIRMAN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleSecretary, RoleReviewer, RoleChairman:
		return true
	}
	return false
}

// Action is a requested workflow operation checked against the role gate.
type Action string

const (
	ActionSubmit     Action = "SUBMIT"
	ActionRoute      Action = "ROUTE"
	ActionCritique   Action = "CRITIQUE"
	ActionEscalate   Action = "ESCALATE"
	ActionDecide     Action = "DECIDE"
	ActionSoftDelete Action = "SOFT_DELETE"
)

// Verdict is a reviewer's conclusion on a document.
type Verdict string

const (
	VerdictApprove        Verdict = "APPROVE"
	VerdictRequestChanges Verdict = "REQUEST_CHANGES"
)

// Decision is the chairman's terminal ruling.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Actor is an already-authenticated identity. The workflow core trusts
// this input; credential verification happens upstream.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Document is the persistent workflow record. State, Assignees, Cycle and
// Version are mutated only through Store.Commit; history is append-only.
type Document struct {
	ID            string    `json:"id" bson:"id"`
	Title         string    `json:"title" bson:"title"`
	Owner         string    `json:"owner" bson:"owner"`
	State         State     `json:"state" bson:"state"`
	Assignees     []string  `json:"assignees,omitempty" bson:"assignees,omitempty"`
	Cycle         int       `json:"cycle" bson:"cycle"`
	Escalated     bool      `json:"escalated,omitempty" bson:"escalated,omitempty"`
	Version       int64     `json:"version" bson:"version"`
	AttachmentKey string    `json:"attachmentKey,omitempty" bson:"attachmentKey,omitempty"`
	Deleted       bool      `json:"deleted" bson:"deleted"`
	DeletedAt     time.Time `json:"deletedAt,omitempty" bson:"deletedAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Assigned reports whether the reviewer is in the current assignee set.
func (d *Document) Assigned(reviewer string) bool {
	for _, a := range d.Assignees {
		if a == reviewer {
			return true
		}
	}
	return false
}

// HistoryEntry records one applied transition. Entries are append-only and
// never physically removed; Deleted only hides an entry from normal
// listings, audit reads always include it.
type HistoryEntry struct {
	DocumentID string    `json:"documentId" bson:"documentId"`
	Actor      string    `json:"actor" bson:"actor"`
	ActorRole  Role      `json:"actorRole" bson:"actorRole"`
	Action     Action    `json:"action" bson:"action"`
	FromState  State     `json:"fromState" bson:"fromState"`
	ToState    State     `json:"toState" bson:"toState"`
	Comment    string    `json:"comment,omitempty" bson:"comment,omitempty"`
	Cycle      int       `json:"cycle" bson:"cycle"`
	Deleted    bool      `json:"deleted,omitempty" bson:"deleted,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// Critique is one reviewer verdict for one routing cycle. Critiques are
// immutable; a re-review after a reopened cycle adds a new record with the
// new cycle number, stale records keep theirs.
type Critique struct {
	DocumentID    string    `json:"documentId" bson:"documentId"`
	Reviewer      string    `json:"reviewer" bson:"reviewer"`
	Cycle         int       `json:"cycle" bson:"cycle"`
	Verdict       Verdict   `json:"verdict" bson:"verdict"`
	Score         *int      `json:"score,omitempty" bson:"score,omitempty"`
	Comment       string    `json:"comment,omitempty" bson:"comment,omitempty"`
	AttachmentKey string    `json:"attachmentKey,omitempty" bson:"attachmentKey,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// Replay folds a document's ordered history from the initial Submitted
// state and returns the resulting state. For a consistent store this must
// reproduce the document's current state exactly.
func Replay(entries []HistoryEntry) State {
	state := StateSubmitted
	for _, e := range entries {
		if e.Action == ActionSoftDelete {
			// deletion is a flag, not a transition
			continue
		}
		state = e.ToState
	}
	return state
}
