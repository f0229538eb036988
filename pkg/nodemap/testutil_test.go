package nodemap

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d and runs every timer that falls due, in
// deadline order, on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// Active returns the number of armed timers.
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type savedPayload struct {
	ID      ID
	Payload Payload
}

// fakeRemote is an in-memory Remote. Hooks, when set, replace the default
// behavior of a call and may block to control response order.
type fakeRemote struct {
	mu        sync.Mutex
	graphs    []Graph
	docs      map[ID]GraphDocument
	saves     []savedPayload
	listCalls int
	fetches   []ID
	logouts   int
	nextID    int

	listErr   error
	fetchErr  error
	createErr error
	saveErr   error
	toggleErr error
	agentErr  error

	listHook   func(call int) ([]Graph, error)
	fetchHook  func(id ID) (GraphDocument, error)
	saveHook   func(id ID, p Payload) error
	toggleHook func(id ID) (FavoriteResult, error)
}

func newFakeRemote(graphs ...Graph) *fakeRemote {
	return &fakeRemote{graphs: graphs, docs: make(map[ID]GraphDocument), nextID: 100}
}

func (r *fakeRemote) setPayload(id ID, p Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.graphs {
		if g.ID == id {
			r.docs[id] = GraphDocument{Graph: g, Payload: p}
			return
		}
	}
	r.docs[id] = GraphDocument{Graph: Graph{ID: id}, Payload: p}
}

func (r *fakeRemote) ListGraphs(ctx context.Context) ([]Graph, error) {
	r.mu.Lock()
	r.listCalls++
	call, hook, err := r.listCalls, r.listHook, r.listErr
	graphs := slices.Clone(r.graphs)
	r.mu.Unlock()
	if hook != nil {
		return hook(call)
	}
	return graphs, err
}

func (r *fakeRemote) FetchGraph(ctx context.Context, id ID) (GraphDocument, error) {
	r.mu.Lock()
	r.fetches = append(r.fetches, id)
	hook, err := r.fetchHook, r.fetchErr
	doc, ok := r.docs[id]
	r.mu.Unlock()
	if hook != nil {
		return hook(id)
	}
	if err != nil {
		return GraphDocument{}, err
	}
	if !ok {
		return GraphDocument{Graph: Graph{ID: id}}, nil
	}
	doc.Payload = doc.Payload.Clone()
	return doc, nil
}

func (r *fakeRemote) CreateGraph(ctx context.Context, draft GraphDraft) (Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return Graph{}, r.createErr
	}
	r.nextID++
	g := Graph{
		ID:          ID(strconv.Itoa(r.nextID)),
		Name:        draft.Name,
		Goal:        draft.Goal,
		Description: draft.Description,
		CreatedAt:   time.Now(),
	}
	r.graphs = append(r.graphs, g)
	return g, nil
}

func (r *fakeRemote) SaveGraph(ctx context.Context, id ID, p Payload) error {
	r.mu.Lock()
	hook, err := r.saveHook, r.saveErr
	r.mu.Unlock()
	if hook != nil {
		err = hook(id, p)
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.saves = append(r.saves, savedPayload{ID: id, Payload: p.Clone()})
	r.mu.Unlock()
	return nil
}

func (r *fakeRemote) ToggleFavorite(ctx context.Context, id ID) (FavoriteResult, error) {
	r.mu.Lock()
	hook, err := r.toggleHook, r.toggleErr
	r.mu.Unlock()
	if hook != nil {
		return hook(id)
	}
	if err != nil {
		return FavoriteResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.graphs {
		if r.graphs[i].ID == id {
			r.graphs[i].IsFavorite = !r.graphs[i].IsFavorite
			return FavoriteResult{GraphID: id, IsFavorite: r.graphs[i].IsFavorite}, nil
		}
	}
	return FavoriteResult{}, errors.New("nodemap not found")
}

func (r *fakeRemote) CreateAgent(ctx context.Context, draft AgentDraft) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.agentErr != nil {
		return Agent{}, r.agentErr
	}
	r.nextID++
	return Agent{
		ID:           ID(strconv.Itoa(r.nextID)),
		Name:         draft.Name,
		Type:         draft.Type,
		Model:        draft.Model,
		SystemPrompt: draft.SystemPrompt,
	}, nil
}

func (r *fakeRemote) Logout(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logouts++
	return nil
}

func (r *fakeRemote) savedPayloads() []savedPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.saves)
}

func (r *fakeRemote) fetched() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.fetches)
}

// gate blocks callers of wait until open is called.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) wait() {
	g.entered <- struct{}{}
	<-g.release
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

// awaitEntered fails the test if nobody reaches wait within a second.
func (g *gate) awaitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(time.Second):
		require.FailNow(t, "gate never entered")
	}
}

func sampleGraphs() []Graph {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []Graph{
		{ID: "1", Name: "Oldest", CreatedAt: base},
		{ID: "2", Name: "Newest", CreatedAt: base.Add(48 * time.Hour)},
		{ID: "3", Name: "Favorite", CreatedAt: base.Add(24 * time.Hour), IsFavorite: true},
	}
}

func agentNode(id string, x, y float64) Node {
	return Node{
		ID:       id,
		Type:     NodeTypeAgent,
		Position: Position{X: x, Y: y},
		Data:     NodeData{Label: "Agent " + id, AgentID: "7"},
	}
}

func samplePayload() Payload {
	return Payload{
		Nodes: []Node{agentNode("dndnode_0", 0, 0), agentNode("dndnode_1", 100, 0)},
		Edges: []Edge{{ID: "reactflow__edge-dndnode_0-dndnode_1", Source: "dndnode_0", Target: "dndnode_1"}},
	}
}

// loadedCanvas returns a canvas loaded with p for graph id.
func loadedCanvas(t *testing.T, id ID, p Payload) (*Canvas, *Selection) {
	t.Helper()
	sel := NewSelection()
	tok, _ := sel.SelectGraph(id)
	c := NewCanvas(sel)
	require.NoError(t, c.Load(tok, p))
	return c, sel
}
