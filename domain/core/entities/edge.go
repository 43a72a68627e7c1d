package entities

import (
	"errors"

	"flowcanvas-backend/domain/core/valueobjects"
)

// Edge is a directed connection between two nodes of the same diagram.
// Its identifier is derived from the endpoint pair, never stored
// independently of them.
type Edge struct {
	ID     valueobjects.EdgeID
	Source valueobjects.NodeID
	Target valueobjects.NodeID
}

// NewEdge creates an edge between two node identifiers
func NewEdge(source, target valueobjects.NodeID) (Edge, error) {
	if source.IsZero() || target.IsZero() {
		return Edge{}, errors.New("edge endpoints cannot be empty")
	}
	return Edge{
		ID:     valueobjects.DeriveEdgeID(source, target),
		Source: source,
		Target: target,
	}, nil
}

// Touches reports whether the edge references the given node as either
// endpoint. Used for cascade deletion when a node is removed.
func (e Edge) Touches(nodeID valueobjects.NodeID) bool {
	return e.Source.Equals(nodeID) || e.Target.Equals(nodeID)
}
