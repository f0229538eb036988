package storage

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Repository for tests and demos.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	users  []User
	graphs []GraphRecord
	agents []AgentRecord
	nextID int64
	closed bool
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateUser implements Repository.
func (m *MemoryStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	for _, existing := range m.users {
		if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return ErrConflict
		}
	}
	u.ID = m.id()
	u.CreatedAt = m.now()
	m.users = append(m.users, *u)
	return nil
}

// FindUser implements Repository.
func (m *MemoryStore) FindUser(_ context.Context, login string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	for _, u := range m.users {
		if u.Username == login || strings.EqualFold(u.Email, login) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// CreateGraph implements Repository.
func (m *MemoryStore) CreateGraph(_ context.Context, g *GraphRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	for _, existing := range m.graphs {
		if existing.UserID == g.UserID && existing.Name == g.Name {
			return ErrConflict
		}
	}
	g.ID = m.id()
	g.CreatedAt = m.now()
	g.Nodes = listOrEmpty(g.Nodes)
	g.Edges = listOrEmpty(g.Edges)
	m.graphs = append(m.graphs, cloneGraph(*g))
	return nil
}

// ListGraphs implements Repository.
func (m *MemoryStore) ListGraphs(_ context.Context, userID int64) ([]GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	out := []GraphRecord{}
	for _, g := range m.graphs {
		if g.UserID == userID {
			g.Nodes, g.Edges = nil, nil
			out = append(out, g)
		}
	}
	return out, nil
}

// GetGraph implements Repository.
func (m *MemoryStore) GetGraph(_ context.Context, userID, graphID int64) (*GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	i := m.graphIndex(userID, graphID)
	if i < 0 {
		return nil, ErrNotFound
	}
	g := cloneGraph(m.graphs[i])
	return &g, nil
}

// SavePayload implements Repository.
func (m *MemoryStore) SavePayload(_ context.Context, userID, graphID int64, nodes, edges json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	i := m.graphIndex(userID, graphID)
	if i < 0 {
		return ErrNotFound
	}
	m.graphs[i].Nodes = listOrEmpty(nodes)
	m.graphs[i].Edges = listOrEmpty(edges)
	return nil
}

// ToggleFavorite implements Repository.
func (m *MemoryStore) ToggleFavorite(_ context.Context, userID, graphID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrStoreClosed
	}
	i := m.graphIndex(userID, graphID)
	if i < 0 {
		return false, ErrNotFound
	}
	m.graphs[i].IsFavorite = !m.graphs[i].IsFavorite
	return m.graphs[i].IsFavorite, nil
}

// CreateAgent implements Repository.
func (m *MemoryStore) CreateAgent(_ context.Context, a *AgentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	for _, existing := range m.agents {
		if existing.UserID == a.UserID && existing.Name == a.Name {
			return ErrConflict
		}
	}
	a.ID = m.id()
	a.CreatedAt = m.now()
	m.agents = append(m.agents, *a)
	return nil
}

// ListAgents implements Repository.
func (m *MemoryStore) ListAgents(_ context.Context, userID int64) ([]AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	out := []AgentRecord{}
	for _, a := range m.agents {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Close implements Repository.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.users, m.graphs, m.agents = nil, nil, nil
	return nil
}

func (m *MemoryStore) graphIndex(userID, graphID int64) int {
	for i := range m.graphs {
		if m.graphs[i].ID == graphID && m.graphs[i].UserID == userID {
			return i
		}
	}
	return -1
}

func cloneGraph(g GraphRecord) GraphRecord {
	g.Nodes = listOrEmpty(g.Nodes)
	g.Edges = listOrEmpty(g.Edges)
	return g
}
