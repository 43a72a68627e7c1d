package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/valueobjects"
	"flowcanvas-backend/infrastructure/persistence/memory"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

func seedDiagram(t *testing.T, store *memory.DiagramStore, ownerID, title string) *aggregates.Diagram {
	t.Helper()
	d, err := aggregates.NewStarterDiagram(ownerID, ownerID+"@example.com")
	require.NoError(t, err)
	require.NoError(t, d.Rename(title))
	require.NoError(t, store.Create(context.Background(), d))
	return d
}

func shareWith(t *testing.T, store *memory.DiagramStore, d *aggregates.Diagram, userID string, perm valueobjects.Permission) {
	t.Helper()
	ctx := context.Background()
	loaded, err := store.GetByID(ctx, d.ID())
	require.NoError(t, err)
	_, err = loaded.ApplyGrants([]aggregates.Grant{{UserID: userID, Permission: perm}})
	require.NoError(t, err)
	require.NoError(t, store.UpdateSharing(ctx, loaded))
}

func TestListDiagramsHandler_MergesOwnedAndShared(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewDiagramStore()
	owned := seedDiagram(t, store, "user1", "Mine")
	foreign := seedDiagram(t, store, "user2", "Theirs")
	shareWith(t, store, foreign, "user1", valueobjects.PermissionEdit)
	seedDiagram(t, store, "user3", "Unrelated")

	handler := NewListDiagramsHandler(store, zap.NewNop())

	// Act
	summaries, err := handler.Handle(ctx, ListDiagramsQuery{UserID: "user1"})

	// Assert
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[string]DiagramSummary, len(summaries))
	for _, s := range summaries {
		byID[s.ID] = s
	}
	assert.Equal(t, valueobjects.RoleOwner, byID[owned.ID().String()].Role)
	assert.Equal(t, valueobjects.RoleEdit, byID[foreign.ID().String()].Role)
	assert.Equal(t, 3, byID[owned.ID().String()].NodeCount)
}

func TestListDiagramsHandler_SortsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDiagramStore()
	older := seedDiagram(t, store, "user1", "Older")
	newer := seedDiagram(t, store, "user1", "Newer")

	// Touch the newer one so its updated timestamp moves ahead
	loaded, err := store.GetByID(ctx, newer.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.Rename("Newer Still"))
	require.NoError(t, store.Update(ctx, loaded))

	handler := NewListDiagramsHandler(store, zap.NewNop())
	summaries, err := handler.Handle(ctx, ListDiagramsQuery{UserID: "user1"})

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, newer.ID().String(), summaries[0].ID)
	assert.Equal(t, older.ID().String(), summaries[1].ID)
}

func TestGetDiagramHandler_RolesAndNotFound(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewDiagramStore()
	d := seedDiagram(t, store, "user1", "Flow")
	handler := NewGetDiagramHandler(store, zap.NewNop())

	// Act + Assert: owner sees owner role
	view, err := handler.Handle(ctx, GetDiagramQuery{DiagramID: d.ID().String(), UserID: "user1"})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.RoleOwner, view.Role)
	assert.Equal(t, "Flow", view.Title)
	assert.Len(t, view.Nodes, 3)

	// An unlisted identity is demoted to view
	view, err = handler.Handle(ctx, GetDiagramQuery{DiagramID: d.ID().String(), UserID: "stranger"})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.RoleView, view.Role)

	// Unknown document
	_, err = handler.Handle(ctx, GetDiagramQuery{DiagramID: valueobjects.NewDiagramID().String(), UserID: "user1"})
	assert.True(t, pkgerrors.IsNotFound(err))

	// Malformed identifier
	_, err = handler.Handle(ctx, GetDiagramQuery{DiagramID: "", UserID: "user1"})
	assert.True(t, pkgerrors.IsValidation(err))
}
