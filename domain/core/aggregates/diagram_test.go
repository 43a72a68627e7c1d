package aggregates

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

func TestNewStarterDiagram(t *testing.T) {
	// Act
	d, err := NewStarterDiagram("user123", "owner@example.com")

	// Assert
	require.NoError(t, err)
	assert.False(t, d.IsSaved())
	assert.Equal(t, DefaultTitle, d.Title())
	assert.Equal(t, "user123", d.OwnerID())
	assert.Equal(t, "owner@example.com", d.OwnerEmail())

	nodes := d.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "Start Node", nodes[0].Label)
	assert.Equal(t, "Process Node", nodes[1].Label)
	assert.Equal(t, "End Node", nodes[2].Label)
	assert.InDelta(t, 250.0, nodes[0].Position.X(), 0.001)
	assert.InDelta(t, 25.0, nodes[0].Position.Y(), 0.001)

	edges := d.Edges()
	require.Len(t, edges, 2)
	assert.True(t, edges[0].Source.Equals(nodes[0].ID))
	assert.True(t, edges[0].Target.Equals(nodes[1].ID))
	assert.True(t, edges[1].Source.Equals(nodes[1].ID))
	assert.True(t, edges[1].Target.Equals(nodes[2].ID))
}

func TestDiagram_AssignID_Immutable(t *testing.T) {
	// Arrange
	d, err := NewDiagram("user123", "owner@example.com", "Flow")
	require.NoError(t, err)

	first := valueobjects.NewDiagramID()

	// Act
	require.NoError(t, d.AssignID(first))
	err = d.AssignID(valueobjects.NewDiagramID())

	// Assert
	assert.Error(t, err)
	assert.True(t, d.ID().Equals(first))
}

func TestDiagram_RemoveNode_CascadesEdges(t *testing.T) {
	// Arrange
	d, err := NewStarterDiagram("user123", "owner@example.com")
	require.NoError(t, err)

	// The middle node carries both edges
	middle := d.Nodes()[1].ID

	// Act
	err = d.RemoveNode(middle)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, d.NodeCount())
	assert.Equal(t, 0, d.EdgeCount())
	for _, e := range d.Edges() {
		assert.False(t, e.Touches(middle))
	}
}

func TestDiagram_RemoveNode_Unknown(t *testing.T) {
	d, err := NewStarterDiagram("user123", "owner@example.com")
	require.NoError(t, err)

	err = d.RemoveNode(valueobjects.NewNodeID())

	assert.Error(t, err)
	assert.Equal(t, 3, d.NodeCount())
}

func TestDiagram_RoleFor(t *testing.T) {
	d, err := NewStarterDiagram("owner1", "owner@example.com")
	require.NoError(t, err)
	require.NoError(t, d.AssignID(valueobjects.NewDiagramID()))

	_, err = d.ApplyGrants([]Grant{
		{UserID: "editor1", Permission: valueobjects.PermissionEdit},
		{UserID: "viewer1", Permission: valueobjects.PermissionView},
	})
	require.NoError(t, err)

	assert.Equal(t, valueobjects.RoleOwner, d.RoleFor("owner1"))
	assert.Equal(t, valueobjects.RoleEdit, d.RoleFor("editor1"))
	assert.Equal(t, valueobjects.RoleView, d.RoleFor("viewer1"))
	// Unlisted identities fall back to view
	assert.Equal(t, valueobjects.RoleView, d.RoleFor("stranger"))
}

func TestDiagram_ApplyGrants_OverwritesExistingIdentity(t *testing.T) {
	// Arrange
	d, err := NewStarterDiagram("owner1", "owner@example.com")
	require.NoError(t, err)
	require.NoError(t, d.AssignID(valueobjects.NewDiagramID()))

	_, err = d.ApplyGrants([]Grant{{UserID: "user2", Permission: valueobjects.PermissionView}})
	require.NoError(t, err)

	// Act: re-grant the same identity with a higher permission
	_, err = d.ApplyGrants([]Grant{{UserID: "user2", Permission: valueobjects.PermissionEdit}})

	// Assert: one entry per identity, permission overwritten
	require.NoError(t, err)
	grants := d.Grants()
	require.Len(t, grants, 1)
	assert.Equal(t, "user2", grants[0].UserID)
	assert.Equal(t, valueobjects.PermissionEdit, grants[0].Permission)
	assert.Equal(t, valueobjects.RoleEdit, d.RoleFor("user2"))
}

func TestDiagram_ApplyGrants_Invalid(t *testing.T) {
	d, err := NewStarterDiagram("owner1", "owner@example.com")
	require.NoError(t, err)

	_, err = d.ApplyGrants(nil)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = d.ApplyGrants([]Grant{{UserID: "", Permission: valueobjects.PermissionEdit}})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = d.ApplyGrants([]Grant{{UserID: "user2", Permission: "admin"}})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDiagram_ReplaceGraph_RejectsDanglingEdges(t *testing.T) {
	// Arrange
	d, err := NewDiagram("user123", "owner@example.com", "Flow")
	require.NoError(t, err)

	pos, err := valueobjects.NewPosition(10, 20)
	require.NoError(t, err)
	node, err := entities.NewNode(valueobjects.NewNodeID(), entities.KindCustom, "Only Node", pos)
	require.NoError(t, err)

	dangling, err := entities.NewEdge(node.ID, valueobjects.NewNodeID())
	require.NoError(t, err)

	// Act
	err = d.ReplaceGraph([]entities.Node{node}, []entities.Edge{dangling})

	// Assert
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDiagram_ReplaceGraph_RejectsDuplicateNodeIDs(t *testing.T) {
	d, err := NewDiagram("user123", "owner@example.com", "Flow")
	require.NoError(t, err)

	pos, err := valueobjects.NewPosition(10, 20)
	require.NoError(t, err)
	id := valueobjects.NewNodeID()
	a, err := entities.NewNode(id, entities.KindCustom, "A", pos)
	require.NoError(t, err)
	b, err := entities.NewNode(id, entities.KindCustom, "B", pos)
	require.NoError(t, err)

	err = d.ReplaceGraph([]entities.Node{a, b}, nil)

	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDiagram_Connect_DerivesEdgeID(t *testing.T) {
	d, err := NewStarterDiagram("user123", "owner@example.com")
	require.NoError(t, err)
	nodes := d.Nodes()

	edge, err := d.Connect(nodes[0].ID, nodes[2].ID)

	require.NoError(t, err)
	assert.Equal(t, "e"+nodes[0].ID.String()+"-"+nodes[2].ID.String(), edge.ID.String())
	assert.Equal(t, 3, d.EdgeCount())
}

func TestDiagram_ScatterNode(t *testing.T) {
	// Arrange
	d, err := NewStarterDiagram("user123", "owner@example.com")
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(42))

	// Act
	node := d.ScatterNode(rng)

	// Assert
	assert.Equal(t, entities.DefaultNodeLabel, node.Label)
	assert.GreaterOrEqual(t, node.Position.X(), 50.0)
	assert.Less(t, node.Position.X(), 450.0)
	assert.GreaterOrEqual(t, node.Position.Y(), 50.0)
	assert.Less(t, node.Position.Y(), 350.0)
	assert.Equal(t, 4, d.NodeCount())
}

func TestDiagram_TouchIsStrictlyMonotonic(t *testing.T) {
	// Arrange
	d, err := NewStarterDiagram("user123", "owner@example.com")
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	// Act: several mutations inside what is likely the same clock tick
	stamps := make([]time.Time, 0, 5)
	for i := 0; i < 5; i++ {
		d.ScatterNode(rng)
		stamps = append(stamps, d.UpdatedAt())
	}

	// Assert
	for i := 1; i < len(stamps); i++ {
		assert.True(t, stamps[i].After(stamps[i-1]),
			"updatedAt must strictly increase across mutations")
	}
}

func TestReconstructDiagram_DeduplicatesGrants(t *testing.T) {
	// Arrange: a stored access list with the same identity twice
	id := valueobjects.NewDiagramID()
	now := time.Now()

	// Act
	d, err := ReconstructDiagram(
		id,
		"owner1",
		"owner@example.com",
		"Flow",
		nil,
		nil,
		[]Grant{
			{UserID: "user2", Permission: valueobjects.PermissionView},
			{UserID: "user2", Permission: valueobjects.PermissionEdit},
		},
		now,
		now,
	)

	// Assert: keep-last wins
	require.NoError(t, err)
	grants := d.Grants()
	require.Len(t, grants, 1)
	assert.Equal(t, valueobjects.PermissionEdit, grants[0].Permission)
}

func TestDiagram_UnsavedDiagramQueuesNoEvents(t *testing.T) {
	// Arrange
	d, err := NewStarterDiagram("user123", "owner@example.com")
	require.NoError(t, err)
	r := rand.New(rand.NewSource(7))

	// Act: mutate before the diagram has an identifier.
	node := d.ScatterNode(r)
	require.NoError(t, d.RemoveNode(node.ID))

	// Assert
	assert.Empty(t, d.GetUncommittedEvents())

	// Act: assign the identifier and mutate again.
	require.NoError(t, d.AssignID(valueobjects.NewDiagramID()))
	added := d.ScatterNode(r)

	// Assert: the created event and the node event carry the aggregate ID.
	queued := d.GetUncommittedEvents()
	require.Len(t, queued, 2)
	assert.Equal(t, "diagram.created", queued[0].GetEventType())
	assert.Equal(t, d.ID().String(), queued[0].GetAggregateID())
	assert.Equal(t, "diagram.node_added", queued[1].GetEventType())
	assert.Equal(t, d.ID().String(), queued[1].GetAggregateID())
	assert.NotEmpty(t, added.ID.String())
}
