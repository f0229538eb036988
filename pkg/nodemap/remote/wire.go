package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/randalmurphal/nodemap/pkg/nodemap"
)

// Request bodies. Required fields are checked before any request is sent.

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// graphRef names a graph for fetch-one and toggle-favorite.
type graphRef struct {
	ID nodemap.ID `json:"id" validate:"required"`
}

type saveRequest struct {
	GraphID nodemap.ID     `json:"graph_id" validate:"required"`
	Nodes   []nodemap.Node `json:"nodes" validate:"required"`
	Edges   []nodemap.Edge `json:"edges" validate:"required"`
}

// Response bodies. Field aliases accept both the current and the legacy
// server vocabulary.

type wireGraph struct {
	ID          nodemap.ID      `json:"id"`
	GraphID     nodemap.ID      `json:"graph_id"`
	NodemapID   nodemap.ID      `json:"nodemap_id"`
	Name        string          `json:"name"`
	Goal        string          `json:"goal"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"created_at"`
	IsFavorite  bool            `json:"is_favorite"`
	Nodes       json.RawMessage `json:"nodes"`
	NodesData   json.RawMessage `json:"nodes_data"`
	Edges       json.RawMessage `json:"edges"`
	EdgesData   json.RawMessage `json:"edges_data"`
}

func firstID(ids ...nodemap.ID) nodemap.ID {
	for _, id := range ids {
		if !id.IsZero() {
			return id
		}
	}
	return ""
}

func (w wireGraph) graph() nodemap.Graph {
	return nodemap.Graph{
		ID:          firstID(w.ID, w.GraphID, w.NodemapID),
		Name:        w.Name,
		Goal:        w.Goal,
		Description: w.Description,
		CreatedAt:   parseTimestamp(w.CreatedAt),
		IsFavorite:  w.IsFavorite,
	}
}

func (w wireGraph) document() (nodemap.GraphDocument, error) {
	doc := nodemap.GraphDocument{Graph: w.graph()}
	if err := decodeList(firstRaw(w.Nodes, w.NodesData), &doc.Payload.Nodes); err != nil {
		return nodemap.GraphDocument{}, fmt.Errorf("nodes: %w", err)
	}
	if err := decodeList(firstRaw(w.Edges, w.EdgesData), &doc.Payload.Edges); err != nil {
		return nodemap.GraphDocument{}, fmt.Errorf("edges: %w", err)
	}
	doc.Payload = doc.Payload.Clone()
	return doc, nil
}

type listResponse struct {
	Graphs   []wireGraph `json:"graphs"`
	Nodemaps []wireGraph `json:"nodemaps"`
}

type createGraphResponse struct {
	wireGraph
	Graph *wireGraph `json:"graph"`
}

type toggleResponse struct {
	GraphID    nodemap.ID `json:"graph_id"`
	NodemapID  nodemap.ID `json:"nodemap_id"`
	IsFavorite *bool      `json:"is_favorite"`
}

type wireAgent struct {
	ID           nodemap.ID `json:"id"`
	AgentID      nodemap.ID `json:"agent_id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Model        string     `json:"model"`
	SystemPrompt string     `json:"system_prompt"`
	CreatedAt    string     `json:"created_at"`
}

func (w wireAgent) agent() nodemap.Agent {
	return nodemap.Agent{
		ID:           firstID(w.ID, w.AgentID),
		Name:         w.Name,
		Type:         w.Type,
		Model:        w.Model,
		SystemPrompt: w.SystemPrompt,
		CreatedAt:    parseTimestamp(w.CreatedAt),
	}
}

type createAgentResponse struct {
	wireAgent
	Agent *wireAgent `json:"agent"`
}

type listAgentsResponse struct {
	Agents []wireAgent `json:"agents"`
}

// User is the account returned by Login.
type User struct {
	ID       nodemap.ID `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// ServiceStatus is the reply of the status endpoint.
type ServiceStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func firstRaw(raws ...json.RawMessage) json.RawMessage {
	for _, r := range raws {
		if len(bytes.TrimSpace(r)) > 0 && string(r) != "null" {
			return r
		}
	}
	return nil
}

// decodeList decodes a JSON array, or a JSON string holding one.
func decodeList(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		if inner == "" {
			return nil
		}
		raw = json.RawMessage(inner)
	}
	return json.Unmarshal(raw, dst)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

// parseTimestamp accepts RFC 3339 and the zone-less ISO forms produced by
// Python servers. Zone-less values are taken as UTC. Unparseable input
// yields the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
