package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/valueobjects"
	"flowcanvas-backend/infrastructure/messaging"
	"flowcanvas-backend/infrastructure/persistence/memory"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

func newTestSession(t *testing.T, userID, email string, store ports.DiagramRepository) *Session {
	t.Helper()
	session, err := NewSession(
		ports.Identity{UserID: userID, Email: email},
		store,
		messaging.NewNoopBus(),
		zap.NewNop(),
	)
	require.NoError(t, err)
	return session
}

func TestNewSession_OpensStarterDiagram(t *testing.T) {
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)

	assert.Equal(t, valueobjects.RoleOwner, session.Role())
	assert.False(t, session.Diagram().IsSaved())
	assert.Equal(t, 3, session.Diagram().NodeCount())
	assert.Equal(t, 2, session.Diagram().EdgeCount())
}

func TestSession_Save_UnsavedRequiresTitle(t *testing.T) {
	// Arrange
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)

	// Act
	err := session.Save(context.Background())

	// Assert
	assert.True(t, errors.Is(err, ErrTitleRequired))
}

func TestSession_SaveNew_AssignsIDAndOwnerRole(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)

	// Act
	id, err := session.SaveNew(ctx, "My Flow")

	// Assert
	require.NoError(t, err)
	assert.False(t, id.IsZero())
	assert.Equal(t, valueobjects.RoleOwner, session.Role())
	assert.True(t, session.Diagram().IsSaved())

	stored, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "My Flow", stored.Title())
	assert.Equal(t, "user1", stored.OwnerID())
	assert.Empty(t, stored.Grants())
}

func TestSession_SaveNew_RejectsAlreadySaved(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)

	_, err := session.SaveNew(ctx, "My Flow")
	require.NoError(t, err)

	_, err = session.SaveNew(ctx, "Another Title")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict))
}

func TestSession_SaveLoadRoundTrip(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)

	node, added := session.AddNode()
	require.True(t, added)
	id, err := session.SaveNew(ctx, "Round Trip")
	require.NoError(t, err)

	// Act: a second session loads the document
	other := newTestSession(t, "user1", "u1@example.com", store)
	require.NoError(t, other.Load(ctx, id))

	// Assert
	assert.Equal(t, valueobjects.RoleOwner, other.Role())
	assert.Equal(t, "Round Trip", other.Diagram().Title())
	assert.Equal(t, 4, other.Diagram().NodeCount())

	found := false
	for _, n := range other.Diagram().Nodes() {
		if n.ID.Equals(node.ID) {
			found = true
			assert.Equal(t, node.Label, n.Label)
			assert.True(t, n.Position.Equals(node.Position))
		}
	}
	assert.True(t, found, "added node must survive the round trip")
}

func TestSession_Load_NotFound(t *testing.T) {
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)

	err := session.Load(context.Background(), valueobjects.NewDiagramID())

	assert.True(t, pkgerrors.IsNotFound(err))
	// Last-known-good state survives the failed load
	assert.Equal(t, 3, session.Diagram().NodeCount())
}

func TestSession_ViewRole_MutationsAreNoOps(t *testing.T) {
	// Arrange: owner saves, a grantee with view permission loads
	ctx := context.Background()
	store := memory.NewDiagramStore()
	owner := newTestSession(t, "owner1", "o@example.com", store)
	id, err := owner.SaveNew(ctx, "Shared Flow")
	require.NoError(t, err)

	diagram, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	_, err = diagram.ApplyGrants([]aggregates.Grant{{UserID: "viewer1", Permission: valueobjects.PermissionView}})
	require.NoError(t, err)
	require.NoError(t, store.UpdateSharing(ctx, diagram))

	viewer := newTestSession(t, "viewer1", "v@example.com", store)
	require.NoError(t, viewer.Load(ctx, id))
	require.Equal(t, valueobjects.RoleView, viewer.Role())

	// Act
	_, added := viewer.AddNode()
	removed, err := viewer.DeleteNode(viewer.Diagram().Nodes()[0].ID)

	// Assert: both are silent no-ops, nothing changed
	assert.False(t, added)
	assert.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 3, viewer.Diagram().NodeCount())

	saveErr := viewer.Save(ctx)
	assert.True(t, pkgerrors.IsForbidden(saveErr))
}

func TestSession_EditRole_CanMutateButNotDelete(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewDiagramStore()
	owner := newTestSession(t, "owner1", "o@example.com", store)
	id, err := owner.SaveNew(ctx, "Shared Flow")
	require.NoError(t, err)

	diagram, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	_, err = diagram.ApplyGrants([]aggregates.Grant{{UserID: "editor1", Permission: valueobjects.PermissionEdit}})
	require.NoError(t, err)
	require.NoError(t, store.UpdateSharing(ctx, diagram))

	editor := newTestSession(t, "editor1", "e@example.com", store)
	require.NoError(t, editor.Load(ctx, id))
	require.Equal(t, valueobjects.RoleEdit, editor.Role())

	// Act + Assert: mutations and save succeed
	_, added := editor.AddNode()
	assert.True(t, added)
	require.NoError(t, editor.Save(ctx))

	stored, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.NodeCount())

	// Delete remains owner-only
	err = editor.Delete(ctx)
	assert.True(t, pkgerrors.IsForbidden(err))
	_, err = store.GetByID(ctx, id)
	assert.NoError(t, err)
}

func TestSession_DeleteNode_CascadePersists(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)
	id, err := session.SaveNew(ctx, "Cascade")
	require.NoError(t, err)

	middle := session.Diagram().Nodes()[1].ID

	// Act
	removed, err := session.DeleteNode(middle)
	require.NoError(t, err)
	require.True(t, removed)
	require.NoError(t, session.Save(ctx))

	// Assert
	stored, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.NodeCount())
	assert.Equal(t, 0, stored.EdgeCount())
}

func TestSession_Delete_OwnerResetsToStarter(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)
	id, err := session.SaveNew(ctx, "Doomed")
	require.NoError(t, err)

	// Act
	require.NoError(t, session.Delete(ctx))

	// Assert: document gone, session back on a fresh starter diagram
	_, err = store.GetByID(ctx, id)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.False(t, session.Diagram().IsSaved())
	assert.Equal(t, 3, session.Diagram().NodeCount())
	assert.Equal(t, valueobjects.RoleOwner, session.Role())
}

func TestSession_Delete_UnsavedRejected(t *testing.T) {
	store := memory.NewDiagramStore()
	session := newTestSession(t, "user1", "u1@example.com", store)

	err := session.Delete(context.Background())

	assert.True(t, pkgerrors.IsValidation(err))
}

// flakyDiagramStore fails a fixed number of Create calls before
// delegating to the real store.
type flakyDiagramStore struct {
	ports.DiagramRepository
	failures int
}

func (s *flakyDiagramStore) Create(ctx context.Context, diagram *aggregates.Diagram) error {
	if s.failures > 0 {
		s.failures--
		return pkgerrors.NewDatabaseError("create diagram", errors.New("store unavailable"))
	}
	return s.DiagramRepository.Create(ctx, diagram)
}

func TestSession_SaveNew_FailureLeavesDiagramUnsavedAndRetryable(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := &flakyDiagramStore{DiagramRepository: memory.NewDiagramStore(), failures: 1}
	session := newTestSession(t, "user1", "u1@example.com", store)

	// Act
	_, err := session.SaveNew(ctx, "Outage Diagram")

	// Assert: the failed save leaves the session in its unsaved state.
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	assert.False(t, session.Diagram().IsSaved())

	// Act: a manual retry succeeds.
	id, err := session.SaveNew(ctx, "Outage Diagram")

	// Assert
	require.NoError(t, err)
	assert.False(t, id.IsZero())
	assert.True(t, session.Diagram().IsSaved())
	assert.Equal(t, valueobjects.RoleOwner, session.Role())
}
