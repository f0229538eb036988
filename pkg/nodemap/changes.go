package nodemap

import "fmt"

// ChangeType is the kind of incremental canvas change.
type ChangeType string

// Change types.
const (
	ChangePosition ChangeType = "position"
	ChangeSelect   ChangeType = "select"
	ChangeRemove   ChangeType = "remove"
	ChangeAdd      ChangeType = "add"
)

// NodeChange is one incremental edit to the node collection.
type NodeChange struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"id"`
	Position *Position  `json:"position,omitempty"`
	Dragging bool       `json:"dragging,omitempty"`
	Selected bool       `json:"selected,omitempty"`
	Item     *Node      `json:"item,omitempty"`
}

// EdgeChange is one incremental edit to the edge collection.
type EdgeChange struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"id"`
	Selected bool       `json:"selected,omitempty"`
	Item     *Edge      `json:"item,omitempty"`
}

// PositionChange moves node id to pos.
func PositionChange(id string, pos Position, dragging bool) NodeChange {
	return NodeChange{Type: ChangePosition, ID: id, Position: &pos, Dragging: dragging}
}

// RemoveNode removes node id and its incident edges.
func RemoveNode(id string) NodeChange {
	return NodeChange{Type: ChangeRemove, ID: id}
}

// SelectNode sets the selected flag of node id.
func SelectNode(id string, selected bool) NodeChange {
	return NodeChange{Type: ChangeSelect, ID: id, Selected: selected}
}

// RemoveEdge removes edge id.
func RemoveEdge(id string) EdgeChange {
	return EdgeChange{Type: ChangeRemove, ID: id}
}

// applyNodeChanges returns the result of applying changes to nodes along
// with the ids of removed nodes. Changes for unknown ids are ignored. nodes
// is not modified.
func applyNodeChanges(nodes []Node, changes []NodeChange) ([]Node, map[string]struct{}, error) {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	removed := make(map[string]struct{})

	index := func(id string) int {
		for i := range out {
			if out[i].ID == id {
				return i
			}
		}
		return -1
	}

	for _, ch := range changes {
		switch ch.Type {
		case ChangePosition:
			i := index(ch.ID)
			if i < 0 {
				continue
			}
			if ch.Position != nil {
				out[i].Position = *ch.Position
			}
			out[i].Dragging = ch.Dragging
		case ChangeSelect:
			if i := index(ch.ID); i >= 0 {
				out[i].Selected = ch.Selected
			}
		case ChangeRemove:
			if i := index(ch.ID); i >= 0 {
				out = append(out[:i], out[i+1:]...)
				removed[ch.ID] = struct{}{}
			}
		case ChangeAdd:
			if ch.Item == nil || ch.Item.ID == "" {
				return nil, nil, fmt.Errorf("add node change: %w", ErrInvalidDescriptor)
			}
			if index(ch.Item.ID) >= 0 {
				return nil, nil, fmt.Errorf("add node %s: %w", ch.Item.ID, ErrDuplicateNode)
			}
			out = append(out, *ch.Item)
			delete(removed, ch.Item.ID)
		default:
			return nil, nil, fmt.Errorf("unknown node change type %q", ch.Type)
		}
	}
	return out, removed, nil
}

// applyEdgeChanges returns the result of applying changes to edges. Added
// edges must reference nodes in nodes. edges is not modified.
func applyEdgeChanges(edges []Edge, nodes []Node, changes []EdgeChange) ([]Edge, error) {
	out := make([]Edge, len(edges))
	copy(out, edges)

	index := func(id string) int {
		for i := range out {
			if out[i].ID == id {
				return i
			}
		}
		return -1
	}

	for _, ch := range changes {
		switch ch.Type {
		case ChangeSelect:
			if i := index(ch.ID); i >= 0 {
				out[i].Selected = ch.Selected
			}
		case ChangeRemove:
			if i := index(ch.ID); i >= 0 {
				out = append(out[:i], out[i+1:]...)
			}
		case ChangeAdd:
			if ch.Item == nil {
				return nil, fmt.Errorf("add edge change: missing item")
			}
			if err := checkEndpoints(nodes, ch.Item.Source, ch.Item.Target); err != nil {
				return nil, err
			}
			e := *ch.Item
			if e.ID == "" || index(e.ID) >= 0 {
				e.ID = uniqueEdgeID(out, e.Source, e.Target)
			}
			out = append(out, e)
		default:
			return nil, fmt.Errorf("unknown edge change type %q", ch.Type)
		}
	}
	return out, nil
}

func checkEndpoints(nodes []Node, source, target string) error {
	for _, id := range []string{source, target} {
		if !hasNode(nodes, id) {
			return fmt.Errorf("edge endpoint %q: %w", id, ErrNodeNotFound)
		}
	}
	return nil
}

func hasNode(nodes []Node, id string) bool {
	for i := range nodes {
		if nodes[i].ID == id {
			return true
		}
	}
	return false
}

func dropIncidentEdges(edges []Edge, removed map[string]struct{}) []Edge {
	if len(removed) == 0 {
		return edges
	}
	out := edges[:0:0]
	for _, e := range edges {
		_, s := removed[e.Source]
		_, t := removed[e.Target]
		if !s && !t {
			out = append(out, e)
		}
	}
	return out
}

// uniqueEdgeID derives an edge id from its endpoints, adding a numeric
// suffix when the plain id is taken.
func uniqueEdgeID(edges []Edge, source, target string) string {
	base := fmt.Sprintf("reactflow__edge-%s-%s", source, target)
	taken := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		taken[e.ID] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s-%d", base, n)
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}
