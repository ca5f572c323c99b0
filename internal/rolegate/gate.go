// Package rolegate holds the single authorization checkpoint for the
// workflow: a pure, table-driven decision over (role, action, state).
package rolegate

import (
	"github.com/docflow/docflow/internal/document"
)

type ruleKey struct {
	Action document.Action
	State  document.State
}

// Gate answers whether a role may perform an action on a document in a
// given state. The table is built once and never mutated afterwards.
type Gate struct {
	rules map[ruleKey][]document.Role
}

// New returns the gate for the fixed approval process:
//
//	Submitted    --Route-->       Secretary
//	Routed       --Route-->       Secretary (re-route, same cycle)
//	Routed       --Critique-->    Reviewer
//	Routed       --Escalate-->    Secretary
//	Routed       --Decide-->      Chairman (aggregator reports incomplete)
//	UnderReview  --Critique-->    Reviewer (re-review)
//	UnderReview  --Decide-->      Chairman
//	non-terminal --SoftDelete-->  Secretary, Chairman
//	terminal     --SoftDelete-->  Chairman
//
// Anything not in the table is denied.
func New() *Gate {
	g := &Gate{rules: make(map[ruleKey][]document.Role)}

	g.allow(document.ActionRoute, document.StateSubmitted, document.RoleSecretary)
	g.allow(document.ActionRoute, document.StateRouted, document.RoleSecretary)
	g.allow(document.ActionCritique, document.StateRouted, document.RoleReviewer)
	g.allow(document.ActionCritique, document.StateUnderReview, document.RoleReviewer)
	g.allow(document.ActionEscalate, document.StateRouted, document.RoleSecretary)
	g.allow(document.ActionDecide, document.StateRouted, document.RoleChairman)
	g.allow(document.ActionDecide, document.StateUnderReview, document.RoleChairman)

	for _, s := range []document.State{
		document.StateSubmitted, document.StateRouted, document.StateUnderReview,
	} {
		g.allow(document.ActionSoftDelete, s, document.RoleSecretary, document.RoleChairman)
	}
	for _, s := range []document.State{document.StateApproved, document.StateRejected} {
		g.allow(document.ActionSoftDelete, s, document.RoleChairman)
	}

	return g
}

func (g *Gate) allow(a document.Action, s document.State, roles ...document.Role) {
	k := ruleKey{Action: a, State: s}
	g.rules[k] = append(g.rules[k], roles...)
}

// Allowed reports whether role may perform action on a document currently
// in state. Pure lookup, no side effects.
func (g *Gate) Allowed(role document.Role, action document.Action, state document.State) bool {
	for _, r := range g.rules[ruleKey{Action: action, State: state}] {
		if r == role {
			return true
		}
	}
	return false
}
