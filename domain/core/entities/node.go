package entities

import (
	"errors"
	"math/rand"
	"strings"

	"flowcanvas-backend/domain/core/valueobjects"
)

// NodeKind tags the visual variant of a node. The editor renders a
// single custom node type today; the tag is persisted so the set can
// grow without a migration.
type NodeKind string

const KindCustom NodeKind = "custom"

// DefaultNodeLabel is the placeholder label for freshly added nodes
const DefaultNodeLabel = "New Node"

// Node is one box on the diagram canvas
type Node struct {
	ID       valueobjects.NodeID
	Kind     NodeKind
	Label    string
	Position valueobjects.Position
}

// NewNode creates a node with validation
func NewNode(id valueobjects.NodeID, kind NodeKind, label string, pos valueobjects.Position) (Node, error) {
	if id.IsZero() {
		return Node{}, errors.New("node ID cannot be empty")
	}
	if kind == "" {
		kind = KindCustom
	}
	if strings.TrimSpace(label) == "" {
		return Node{}, errors.New("node label cannot be empty")
	}
	return Node{ID: id, Kind: kind, Label: label, Position: pos}, nil
}

// NewScatteredNode creates a placeholder node at a jittered position
func NewScatteredNode(r *rand.Rand) Node {
	return Node{
		ID:       valueobjects.NewNodeID(),
		Kind:     KindCustom,
		Label:    DefaultNodeLabel,
		Position: valueobjects.NewScatteredPosition(r),
	}
}
