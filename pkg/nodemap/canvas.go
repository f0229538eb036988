package nodemap

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const nodeIDPrefix = "dndnode_"

// Snapshot is the canvas content captured for a save.
type Snapshot struct {
	GraphID ID
	Token   Token
	Payload Payload
}

// Canvas holds the live node and edge collections for the selected graph.
// It is uninitialized until Load succeeds and every mutation fails with
// ErrCanvasNotReady until then.
type Canvas struct {
	selection *Selection
	opts      options

	mu       sync.RWMutex
	ready    bool
	token    Token
	nodes    []Node
	edges    []Edge
	viewport Viewport
	nextID   int
}

// NewCanvas creates an uninitialized canvas. Load and Reset are checked
// against selection so that late results never land on the wrong graph.
func NewCanvas(selection *Selection, opts ...Option) *Canvas {
	return &Canvas{
		selection: selection,
		opts:      buildOptions(opts),
		viewport:  DefaultViewport,
	}
}

// Load replaces the canvas content with payload and binds the canvas to the
// graph of tok. It returns ErrStaleResponse if tok is no longer current.
// Edges that reference missing nodes are dropped.
func (c *Canvas) Load(tok Token, p Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.selection.IsCurrent(tok) || tok.GraphID.IsZero() {
		return ErrStaleResponse
	}

	nodes := make([]Node, 0, len(p.Nodes))
	seen := make(map[string]struct{}, len(p.Nodes))
	next := 0
	for _, n := range p.Nodes {
		if _, dup := seen[n.ID]; dup || n.ID == "" {
			c.opts.logger.Warn("dropping invalid node",
				zap.String("graph_id", tok.GraphID.String()),
				zap.String("node_id", n.ID),
			)
			continue
		}
		seen[n.ID] = struct{}{}
		if n.Type == nodeTypeAgentAlias || n.Type == "" {
			n.Type = NodeTypeAgent
		}
		n.Dragging = false
		nodes = append(nodes, n)
		if k, ok := parseNodeSeq(n.ID); ok && k >= next {
			next = k + 1
		}
	}

	edges := make([]Edge, 0, len(p.Edges))
	for _, e := range p.Edges {
		if err := checkEndpoints(nodes, e.Source, e.Target); err != nil {
			c.opts.logger.Warn("dropping dangling edge",
				zap.String("graph_id", tok.GraphID.String()),
				zap.String("edge_id", e.ID),
			)
			continue
		}
		if e.ID == "" {
			e.ID = uniqueEdgeID(edges, e.Source, e.Target)
		}
		edges = append(edges, e)
	}

	c.token = tok
	c.nodes = nodes
	c.edges = edges
	c.nextID = next
	c.viewport = DefaultViewport
	c.ready = true
	return nil
}

// Reset tears the canvas down if tok is still current. A reset issued for
// an epoch that has since been replaced does nothing, so it can never wipe
// a newer load.
func (c *Canvas) Reset(tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selection.IsCurrent(tok) {
		return
	}
	c.clear()
}

func (c *Canvas) clear() {
	c.ready = false
	c.token = Token{}
	c.nodes = nil
	c.edges = nil
	c.nextID = 0
	c.viewport = DefaultViewport
}

// Ready reports whether the canvas has been loaded for the selected graph.
func (c *Canvas) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// GraphID returns the graph the canvas is bound to.
func (c *Canvas) GraphID() (ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.GraphID, c.ready
}

// Nodes returns a copy of the node collection.
func (c *Canvas) Nodes() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Edges returns a copy of the edge collection.
func (c *Canvas) Edges() []Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Edge, len(c.edges))
	copy(out, c.edges)
	return out
}

// ApplyNodeChanges applies a batch of node changes. Removing a node also
// removes its incident edges. The batch is all-or-nothing. Node changes
// never schedule a save on their own.
func (c *Canvas) ApplyNodeChanges(changes []NodeChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return ErrCanvasNotReady
	}
	nodes, removed, err := applyNodeChanges(c.nodes, changes)
	if err != nil {
		return err
	}
	c.nodes = nodes
	c.edges = dropIncidentEdges(c.edges, removed)
	for _, ch := range changes {
		if ch.Type == ChangeAdd && ch.Item != nil {
			c.bumpNextID(ch.Item.ID)
		}
	}
	return nil
}

// ApplyEdgeChanges applies a batch of edge changes. The batch is
// all-or-nothing.
func (c *Canvas) ApplyEdgeChanges(changes []EdgeChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return ErrCanvasNotReady
	}
	edges, err := applyEdgeChanges(c.edges, c.nodes, changes)
	if err != nil {
		return err
	}
	c.edges = edges
	return nil
}

// Connect appends an edge from source to target. Both nodes must exist.
func (c *Canvas) Connect(source, target string) (Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return Edge{}, ErrCanvasNotReady
	}
	if err := checkEndpoints(c.nodes, source, target); err != nil {
		return Edge{}, err
	}
	e := Edge{ID: uniqueEdgeID(c.edges, source, target), Source: source, Target: target}
	c.edges = append(c.edges, e)
	return e, nil
}

// AddNode appends n. Its id must be unused.
func (c *Canvas) AddNode(n Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return ErrCanvasNotReady
	}
	if n.ID == "" {
		return fmt.Errorf("add node: empty id: %w", ErrInvalidDescriptor)
	}
	if hasNode(c.nodes, n.ID) {
		return fmt.Errorf("add node %s: %w", n.ID, ErrDuplicateNode)
	}
	c.nodes = append(c.nodes, n)
	c.bumpNextID(n.ID)
	return nil
}

// MoveNode sets the final position of node id and ends its drag.
func (c *Canvas) MoveNode(id string, pos Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return ErrCanvasNotReady
	}
	for i := range c.nodes {
		if c.nodes[i].ID == id {
			c.nodes[i].Position = pos
			c.nodes[i].Dragging = false
			return nil
		}
	}
	return fmt.Errorf("move node %s: %w", id, ErrNodeNotFound)
}

// Snapshot captures the current content. It reports false when the canvas
// is not ready.
func (c *Canvas) Snapshot() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ready {
		return Snapshot{}, false
	}
	p := Payload{Nodes: c.nodes, Edges: c.edges}.Clone()
	for i := range p.Nodes {
		p.Nodes[i].Dragging = false
	}
	return Snapshot{GraphID: c.token.GraphID, Token: c.token, Payload: p}, true
}

// NextNodeID reserves and returns a node id that is unused on this canvas.
func (c *Canvas) NextNodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		id := nodeIDPrefix + strconv.Itoa(c.nextID)
		c.nextID++
		if !hasNode(c.nodes, id) {
			return id
		}
	}
}

// SetViewport records the current pan and zoom.
func (c *Canvas) SetViewport(v Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.Zoom <= 0 {
		v.Zoom = 1
	}
	c.viewport = v
}

// Viewport returns the current pan and zoom.
func (c *Canvas) Viewport() Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewport
}

// Project converts a screen point to canvas coordinates using the current
// viewport.
func (c *Canvas) Project(client Point, bounds Rect) Position {
	return c.Viewport().Project(client, bounds)
}

// bumpNextID keeps the id counter ahead of id. Callers hold c.mu.
func (c *Canvas) bumpNextID(id string) {
	if k, ok := parseNodeSeq(id); ok && k >= c.nextID {
		c.nextID = k + 1
	}
}

func parseNodeSeq(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, nodeIDPrefix)
	if !ok {
		return 0, false
	}
	k, err := strconv.Atoi(rest)
	if err != nil || k < 0 {
		return 0, false
	}
	return k, true
}
