package nodemap

import (
	"slices"
	"time"
)

// Graph is the summary of a persisted graph as listed by the remote service.
type Graph struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Goal        string    `json:"goal"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	IsFavorite  bool      `json:"is_favorite"`
}

// GraphDraft holds the fields needed to create a graph.
type GraphDraft struct {
	Name        string `json:"name" validate:"required"`
	Goal        string `json:"goal" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// NodeType identifies the renderer for a node.
type NodeType string

// NodeTypeAgent is the only node type the editor creates.
const NodeTypeAgent NodeType = "agent"

// nodeTypeAgentAlias is the tag older persisted payloads use for agents.
const nodeTypeAgentAlias NodeType = "aiAgent"

// Position is a point in canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the agent payload attached to a node.
type NodeData struct {
	Label      string `json:"label"`
	AgentID    ID     `json:"agentId"`
	AgentType  string `json:"agentType,omitempty"`
	AgentModel string `json:"agentModel,omitempty"`
}

// Node is a placed agent instance on the canvas.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
	Selected bool     `json:"selected,omitempty"`
	Dragging bool     `json:"dragging,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Selected bool   `json:"selected,omitempty"`
}

// Payload is the persisted content of one graph.
type Payload struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy with non-nil slices.
func (p Payload) Clone() Payload {
	out := Payload{
		Nodes: make([]Node, len(p.Nodes)),
		Edges: make([]Edge, len(p.Edges)),
	}
	copy(out.Nodes, p.Nodes)
	copy(out.Edges, p.Edges)
	return out
}

// GraphDocument is a graph's metadata together with its payload, as returned
// by a single-graph fetch.
type GraphDocument struct {
	Graph
	Payload Payload `json:"payload"`
}

// AgentDescriptor is carried in a drag payload. ID and Name are required.
type AgentDescriptor struct {
	ID    ID     `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Type  string `json:"type"`
	Model string `json:"model"`
}

// AgentDraft holds the fields needed to create an agent.
type AgentDraft struct {
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type" validate:"required"`
	Model        string `json:"model" validate:"required"`
	SystemPrompt string `json:"system_prompt" validate:"required"`
}

// Agent is an agent definition known to the remote service.
type Agent struct {
	ID           ID        `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	CreatedAt    time.Time `json:"created_at"`
}

// Descriptor returns the drag descriptor for the agent.
func (a Agent) Descriptor() AgentDescriptor {
	return AgentDescriptor{ID: a.ID, Name: a.Name, Type: a.Type, Model: a.Model}
}

// FavoriteResult is the authoritative favorite flag after a toggle.
type FavoriteResult struct {
	GraphID    ID   `json:"graph_id"`
	IsFavorite bool `json:"is_favorite"`
}

func cloneGraphs(in []Graph) []Graph {
	if in == nil {
		return []Graph{}
	}
	return slices.Clone(in)
}
