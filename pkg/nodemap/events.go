package nodemap

const eventSource = "nodemap"

// Event types published when a bus is configured with WithEventBus.
const (
	EventSelectionChanged = "nodemap.selection.changed"
	EventViewChanged      = "nodemap.view.changed"
	EventGraphsLoaded     = "nodemap.graphs.loaded"
	EventPayloadLoaded    = "nodemap.payload.loaded"
	EventGraphCreated     = "nodemap.graph.created"
	EventGraphSaved       = "nodemap.graph.saved"
	EventSaveFailed       = "nodemap.graph.save_failed"
	EventFavoriteToggled  = "nodemap.graph.favorite_toggled"
	EventAgentCreated     = "nodemap.agent.created"
	EventSessionEnded     = "nodemap.session.ended"
)

// SelectionChange is the payload of EventSelectionChanged.
type SelectionChange struct {
	Previous ID `json:"previous"`
	Current  ID `json:"current"`
}
