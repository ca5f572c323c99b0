package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/document"
)

func newTestDoc(owner string) (*document.Document, document.HistoryEntry) {
	doc := &document.Document{
		Title: "Zoning variance request",
		Owner: owner,
		State: document.StateSubmitted,
	}
	entry := document.HistoryEntry{
		Actor:     owner,
		ActorRole: document.RoleCitizen,
		Action:    document.ActionSubmit,
		ToState:   document.StateSubmitted,
		Timestamp: time.Now().UTC(),
	}
	return doc, entry
}

func TestMemoryRepo_CreateAndLoad(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	doc, entry := newTestDoc("alice")
	require.NoError(t, repo.Create(ctx, doc, entry))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, int64(1), doc.Version)

	got, hist, err := repo.Load(ctx, doc.ID, false)
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)
	require.Equal(t, document.StateSubmitted, got.State)
	require.Len(t, hist, 1)
	require.Equal(t, document.ActionSubmit, hist[0].Action)
	require.Equal(t, doc.ID, hist[0].DocumentID)
}

func TestMemoryRepo_LoadMissing(t *testing.T) {
	repo := NewMemoryRepo()
	_, _, err := repo.Load(context.Background(), "doc_nope", false)
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestMemoryRepo_CommitBumpsVersion(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	doc, entry := newTestDoc("alice")
	require.NoError(t, repo.Create(ctx, doc, entry))

	doc.State = document.StateRouted
	doc.Assignees = []string{"rev1", "rev2"}
	route := document.HistoryEntry{
		Actor:     "sec1",
		ActorRole: document.RoleSecretary,
		Action:    document.ActionRoute,
		FromState: document.StateSubmitted,
		ToState:   document.StateRouted,
	}
	require.NoError(t, repo.Commit(ctx, doc, route, nil))
	require.Equal(t, int64(2), doc.Version)

	got, hist, err := repo.Load(ctx, doc.ID, false)
	require.NoError(t, err)
	require.Equal(t, document.StateRouted, got.State)
	require.Equal(t, []string{"rev1", "rev2"}, got.Assignees)
	require.Len(t, hist, 2)
}

func TestMemoryRepo_CommitConflict(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	doc, entry := newTestDoc("alice")
	require.NoError(t, repo.Create(ctx, doc, entry))

	first, _, err := repo.Load(ctx, doc.ID, false)
	require.NoError(t, err)
	second, _, err := repo.Load(ctx, doc.ID, false)
	require.NoError(t, err)

	first.State = document.StateRouted
	require.NoError(t, repo.Commit(ctx, first, document.HistoryEntry{Action: document.ActionRoute}, nil))

	// second still holds the stale version and must lose
	second.State = document.StateRouted
	err = repo.Commit(ctx, second, document.HistoryEntry{Action: document.ActionRoute}, nil)
	require.ErrorIs(t, err, document.ErrConflict)

	got, _, err := repo.Load(ctx, doc.ID, false)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Version)
}

func TestMemoryRepo_SoftDeleteAndAudit(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	doc, entry := newTestDoc("alice")
	require.NoError(t, repo.Create(ctx, doc, entry))

	doc.Deleted = true
	doc.DeletedAt = time.Now().UTC()
	del := document.HistoryEntry{
		Actor:     "sec1",
		ActorRole: document.RoleSecretary,
		Action:    document.ActionSoftDelete,
		FromState: doc.State,
		ToState:   doc.State,
	}
	require.NoError(t, repo.Commit(ctx, doc, del, nil))

	_, _, err := repo.Load(ctx, doc.ID, false)
	require.ErrorIs(t, err, document.ErrGone)

	got, hist, err := repo.Load(ctx, doc.ID, true)
	require.NoError(t, err)
	require.True(t, got.Deleted)
	require.Len(t, hist, 2)

	// deleted documents never appear in listings, even for the chairman
	docs, err := repo.List(ctx, document.Actor{ID: "ch1", Role: document.RoleChairman}, Filter{})
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestMemoryRepo_ListRoleScope(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	mine, e1 := newTestDoc("alice")
	require.NoError(t, repo.Create(ctx, mine, e1))

	other, e2 := newTestDoc("bob")
	require.NoError(t, repo.Create(ctx, other, e2))
	other.State = document.StateRouted
	other.Assignees = []string{"rev1"}
	require.NoError(t, repo.Commit(ctx, other, document.HistoryEntry{Action: document.ActionRoute}, nil))

	docs, err := repo.List(ctx, document.Actor{ID: "alice", Role: document.RoleCitizen}, Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, mine.ID, docs[0].ID)

	docs, err = repo.List(ctx, document.Actor{ID: "rev1", Role: document.RoleReviewer}, Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, other.ID, docs[0].ID)

	docs, err = repo.List(ctx, document.Actor{ID: "sec1", Role: document.RoleSecretary}, Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs, err = repo.List(ctx, document.Actor{ID: "sec1", Role: document.RoleSecretary}, Filter{States: []document.State{document.StateRouted}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, other.ID, docs[0].ID)

	// the owner filter narrows scope but never widens it past the role
	docs, err = repo.List(ctx, document.Actor{ID: "alice", Role: document.RoleCitizen}, Filter{Owner: "bob"})
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestMemoryRepo_CritiquesByCycle(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	doc, entry := newTestDoc("alice")
	require.NoError(t, repo.Create(ctx, doc, entry))

	commitCritique := func(reviewer string, cycle int) {
		cur, _, err := repo.Load(ctx, doc.ID, false)
		require.NoError(t, err)
		cur.Cycle = cycle
		c := &document.Critique{
			Reviewer: reviewer,
			Cycle:    cycle,
			Verdict:  document.VerdictApprove,
		}
		e := document.HistoryEntry{Action: document.ActionCritique, Cycle: cycle}
		require.NoError(t, repo.Commit(ctx, cur, e, c))
	}

	commitCritique("rev1", 0)
	commitCritique("rev2", 0)
	commitCritique("rev1", 1)

	cs, err := repo.Critiques(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	cs, err = repo.Critiques(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	require.Equal(t, "rev1", cs[0].Reviewer)
	require.Equal(t, doc.ID, cs[0].DocumentID)

	cs, err = repo.Critiques(ctx, doc.ID, -1)
	require.NoError(t, err)
	require.Len(t, cs, 3)

	_, err = repo.Critiques(ctx, "doc_nope", -1)
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestMemoryRepo_LoadReturnsCopies(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	doc, entry := newTestDoc("alice")
	require.NoError(t, repo.Create(ctx, doc, entry))

	got, _, err := repo.Load(ctx, doc.ID, false)
	require.NoError(t, err)
	got.Title = "mutated"

	again, _, err := repo.Load(ctx, doc.ID, false)
	require.NoError(t, err)
	require.Equal(t, "Zoning variance request", again.Title)
}
