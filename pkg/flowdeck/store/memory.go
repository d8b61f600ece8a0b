package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
)

// MemoryStore is an in-memory Store and Documents for tests.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	flows  map[string]storedFlow
	docs   map[string]storedDoc
	seq    int
	opts   options
	closed bool
}

// storedFlow keeps the encoded graph so callers cannot mutate stored state.
type storedFlow struct {
	flow  flowdeck.Flow
	nodes string
	edges string
	seq   int
}

type storedDoc struct {
	doc Document
	seq int
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ Documents = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		flows: make(map[string]storedFlow),
		docs:  make(map[string]storedDoc),
		opts:  applyOptions(opts),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, f flowdeck.Flow) (flowdeck.Flow, error) {
	nodes, edges, err := flowdeck.EncodeParts(graphOf(f))
	if err != nil {
		return flowdeck.Flow{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return flowdeck.Flow{}, ErrStoreClosed
	}

	now := m.opts.now()
	if f.ID == "" {
		if err := validateNew(f); err != nil {
			return flowdeck.Flow{}, err
		}
		f.ID = uuid.NewString()
		f.CreatedAt = now
		f.UpdatedAt = now
		f.Graph = nil
		m.seq++
		m.flows[f.ID] = storedFlow{flow: f, nodes: nodes, edges: edges, seq: m.seq}
		return m.decode(m.flows[f.ID])
	}

	existing, ok := m.flows[f.ID]
	if !ok {
		return flowdeck.Flow{}, notFound("flow", f.ID)
	}
	if f.Name != "" {
		existing.flow.Name = f.Name
	}
	existing.flow.UpdatedAt = now
	existing.nodes = nodes
	existing.edges = edges
	m.flows[f.ID] = existing
	return m.decode(existing)
}

func (m *MemoryStore) decode(s storedFlow) (flowdeck.Flow, error) {
	g, err := m.opts.decodeGraph(s.flow.ID, s.nodes, s.edges)
	if err != nil {
		return flowdeck.Flow{}, err
	}
	f := s.flow
	f.Graph = g
	return f, nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (flowdeck.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return flowdeck.Flow{}, ErrStoreClosed
	}
	s, ok := m.flows[id]
	if !ok {
		return flowdeck.Flow{}, notFound("flow", id)
	}
	return m.decode(s)
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.flows, id)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, ownerName string) ([]flowdeck.FlowSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var matched []storedFlow
	for _, s := range m.flows {
		if s.flow.UserName == ownerName {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.flow.CreatedAt.Equal(b.flow.CreatedAt) {
			return a.flow.CreatedAt.After(b.flow.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]flowdeck.FlowSummary, 0, len(matched))
	for _, s := range matched {
		out = append(out, s.flow.Summary())
	}
	return out, nil
}

// SaveDocument implements Documents.
func (m *MemoryStore) SaveDocument(_ context.Context, doc Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Document{}, ErrStoreClosed
	}

	doc.ID = uuid.NewString()
	doc.CreatedAt = m.opts.now()
	doc.Size = int64(len(doc.Data))
	doc.Data = append([]byte(nil), doc.Data...)
	m.seq++
	m.docs[doc.ID] = storedDoc{doc: doc, seq: m.seq}
	return doc, nil
}

// GetDocument implements Documents.
func (m *MemoryStore) GetDocument(_ context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Document{}, ErrStoreClosed
	}
	s, ok := m.docs[id]
	if !ok {
		return Document{}, notFound("document", id)
	}
	doc := s.doc
	doc.Data = append([]byte(nil), doc.Data...)
	return doc, nil
}

// ListDocuments implements Documents.
func (m *MemoryStore) ListDocuments(_ context.Context, userID string, limit int) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var matched []storedDoc
	for _, s := range m.docs {
		if s.doc.UserID == userID {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.After(b.doc.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]Document, 0, len(matched))
	for _, s := range matched {
		doc := s.doc
		doc.Data = nil
		out = append(out, doc)
	}
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.flows = nil
	m.docs = nil
	return nil
}

// Ping reports ErrStoreClosed after Close.
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStoreClosed
	}
	return nil
}
