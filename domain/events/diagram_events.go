package events

import "time"

// DiagramCreated is raised when a diagram document is persisted for
// the first time.
type DiagramCreated struct {
	BaseEvent
	DiagramID string `json:"diagram_id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
}

// NewDiagramCreated creates a DiagramCreated event
func NewDiagramCreated(diagramID, ownerID, title string, at time.Time) DiagramCreated {
	return DiagramCreated{
		BaseEvent: newBase(diagramID, "diagram.created", at),
		DiagramID: diagramID,
		OwnerID:   ownerID,
		Title:     title,
	}
}

// DiagramDeleted is raised when a diagram document is removed from the store
type DiagramDeleted struct {
	BaseEvent
	DiagramID string `json:"diagram_id"`
	OwnerID   string `json:"owner_id"`
}

// NewDiagramDeleted creates a DiagramDeleted event
func NewDiagramDeleted(diagramID, ownerID string, at time.Time) DiagramDeleted {
	return DiagramDeleted{
		BaseEvent: newBase(diagramID, "diagram.deleted", at),
		DiagramID: diagramID,
		OwnerID:   ownerID,
	}
}

// DiagramShared is raised after grants are merged into the access list
type DiagramShared struct {
	BaseEvent
	DiagramID string   `json:"diagram_id"`
	UserIDs   []string `json:"user_ids"`
}

// NewDiagramShared creates a DiagramShared event
func NewDiagramShared(diagramID string, userIDs []string, at time.Time) DiagramShared {
	return DiagramShared{
		BaseEvent: newBase(diagramID, "diagram.shared", at),
		DiagramID: diagramID,
		UserIDs:   userIDs,
	}
}

// NodeAdded is raised when a node is appended to the in-memory graph
type NodeAdded struct {
	BaseEvent
	DiagramID string `json:"diagram_id"`
	NodeID    string `json:"node_id"`
}

// NewNodeAdded creates a NodeAdded event
func NewNodeAdded(diagramID, nodeID string, at time.Time) NodeAdded {
	return NodeAdded{
		BaseEvent: newBase(diagramID, "diagram.node_added", at),
		DiagramID: diagramID,
		NodeID:    nodeID,
	}
}

// NodeRemoved is raised when a node and its incident edges are removed
type NodeRemoved struct {
	BaseEvent
	DiagramID    string `json:"diagram_id"`
	NodeID       string `json:"node_id"`
	EdgesRemoved int    `json:"edges_removed"`
}

// NewNodeRemoved creates a NodeRemoved event
func NewNodeRemoved(diagramID, nodeID string, edgesRemoved int, at time.Time) NodeRemoved {
	return NodeRemoved{
		BaseEvent:    newBase(diagramID, "diagram.node_removed", at),
		DiagramID:    diagramID,
		NodeID:       nodeID,
		EdgesRemoved: edgesRemoved,
	}
}
