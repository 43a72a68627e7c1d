package valueobjects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DiagramID is a value object identifying a persisted diagram.
// A diagram that has never been saved carries the zero DiagramID;
// the identifier is assigned by the document store on first save and
// is immutable afterwards.
type DiagramID struct {
	value string
}

// NewDiagramID creates a new random DiagramID
func NewDiagramID() DiagramID {
	return DiagramID{value: uuid.New().String()}
}

// ParseDiagramID creates a DiagramID from an existing string
func ParseDiagramID(id string) (DiagramID, error) {
	if strings.TrimSpace(id) == "" {
		return DiagramID{}, errors.New("diagram ID cannot be empty")
	}
	return DiagramID{value: id}, nil
}

// String returns the string representation of the DiagramID
func (id DiagramID) String() string {
	return id.value
}

// Equals checks if two DiagramIDs are equal
func (id DiagramID) Equals(other DiagramID) bool {
	return id.value == other.value
}

// IsZero reports whether the diagram has not been assigned an identifier yet
func (id DiagramID) IsZero() bool {
	return id.value == ""
}

// NodeID is a value object representing a unique node identifier within
// a diagram. IDs are UUID-backed rather than timestamp-derived so two
// nodes created in the same instant can never collide.
type NodeID struct {
	value string
}

// NewNodeID creates a new collision-resistant NodeID
func NewNodeID() NodeID {
	return NodeID{value: "node-" + uuid.New().String()}
}

// ParseNodeID creates a NodeID from an existing string
func ParseNodeID(id string) (NodeID, error) {
	if strings.TrimSpace(id) == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// EdgeID is derived deterministically from the edge's endpoints, so the
// same pair of nodes always yields the same identifier.
type EdgeID struct {
	value string
}

// DeriveEdgeID builds the canonical EdgeID for a source/target pair
func DeriveEdgeID(source, target NodeID) EdgeID {
	return EdgeID{value: fmt.Sprintf("e%s-%s", source.String(), target.String())}
}

// ParseEdgeID creates an EdgeID from an existing string
func ParseEdgeID(id string) (EdgeID, error) {
	if strings.TrimSpace(id) == "" {
		return EdgeID{}, errors.New("edge ID cannot be empty")
	}
	return EdgeID{value: id}, nil
}

// String returns the string representation of the EdgeID
func (id EdgeID) String() string {
	return id.value
}

// Equals checks if two EdgeIDs are equal
func (id EdgeID) Equals(other EdgeID) bool {
	return id.value == other.value
}
