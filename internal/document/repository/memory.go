package repository

import (
	"context"
	"sync"
	"time"

	"github.com/docflow/docflow/internal/document"
)

type memoryRecord struct {
	doc       document.Document
	history   []document.HistoryEntry
	critiques []document.Critique
}

// MemoryRepo is the in-memory Store used for unit tests and for running
// the service without MongoDB. All reads hand out copies so callers never
// hold a mutable handle to a persisted record.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*memoryRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*memoryRecord)}
}

func (m *MemoryRepo) Create(ctx context.Context, doc *document.Document, entry document.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = "doc_" + time.Now().Format("20060102T150405.000000000")
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1
	entry.DocumentID = doc.ID
	m.store[doc.ID] = &memoryRecord{
		doc:     *doc,
		history: []document.HistoryEntry{entry},
	}
	return nil
}

func (m *MemoryRepo) Load(ctx context.Context, id string, includeDeleted bool) (*document.Document, []document.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[id]
	if !ok {
		return nil, nil, document.ErrNotFound
	}
	if rec.doc.Deleted && !includeDeleted {
		return nil, nil, document.ErrGone
	}
	d := rec.doc
	d.Assignees = append([]string(nil), rec.doc.Assignees...)
	hist := append([]document.HistoryEntry(nil), rec.history...)
	return &d, hist, nil
}

func (m *MemoryRepo) Commit(ctx context.Context, doc *document.Document, entry document.HistoryEntry, critique *document.Critique) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[doc.ID]
	if !ok {
		return document.ErrNotFound
	}
	if rec.doc.Version != doc.Version {
		return document.ErrConflict
	}
	doc.Version++
	doc.UpdatedAt = time.Now().UTC()
	rec.doc = *doc
	rec.doc.Assignees = append([]string(nil), doc.Assignees...)
	entry.DocumentID = doc.ID
	rec.history = append(rec.history, entry)
	if critique != nil {
		c := *critique
		c.DocumentID = doc.ID
		rec.critiques = append(rec.critiques, c)
	}
	return nil
}

func (m *MemoryRepo) List(ctx context.Context, actor document.Actor, f Filter) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.Document{}
	for _, rec := range m.store {
		if rec.doc.Deleted {
			continue
		}
		if !visible(&rec.doc, actor) || !matches(&rec.doc, f) {
			continue
		}
		d := rec.doc
		d.Assignees = append([]string(nil), rec.doc.Assignees...)
		out = append(out, &d)
	}
	return out, nil
}

func (m *MemoryRepo) Critiques(ctx context.Context, docID string, cycle int) ([]document.Critique, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[docID]
	if !ok {
		return nil, document.ErrNotFound
	}
	out := []document.Critique{}
	for _, c := range rec.critiques {
		if cycle < 0 || c.Cycle == cycle {
			out = append(out, c)
		}
	}
	return out, nil
}
