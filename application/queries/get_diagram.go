package queries

import (
	"context"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	pkgerrors "flowcanvas-backend/pkg/errors"

	"go.uber.org/zap"
)

// GetDiagramQuery requests one diagram with the caller's effective role
type GetDiagramQuery struct {
	DiagramID string
	UserID    string
}

// DiagramView is the read model returned to the presentation layer
type DiagramView struct {
	ID         string
	Title      string
	Nodes      []entities.Node
	Edges      []entities.Edge
	OwnerID    string
	OwnerEmail string
	Role       valueobjects.Role
	CreatedAt  int64 // epoch ms
	UpdatedAt  int64 // epoch ms
}

// GetDiagramHandler serves GetDiagramQuery
type GetDiagramHandler struct {
	diagrams ports.DiagramRepository
	logger   *zap.Logger
}

// NewGetDiagramHandler creates the handler
func NewGetDiagramHandler(diagrams ports.DiagramRepository, logger *zap.Logger) *GetDiagramHandler {
	return &GetDiagramHandler{diagrams: diagrams, logger: logger}
}

// Handle executes the query. Unlisted identities still receive the
// diagram with role view; a missing document is NotFound.
func (h *GetDiagramHandler) Handle(ctx context.Context, q GetDiagramQuery) (*DiagramView, error) {
	id, err := valueobjects.ParseDiagramID(q.DiagramID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	diagram, err := h.diagrams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DiagramView{
		ID:         diagram.ID().String(),
		Title:      diagram.Title(),
		Nodes:      diagram.Nodes(),
		Edges:      diagram.Edges(),
		OwnerID:    diagram.OwnerID(),
		OwnerEmail: diagram.OwnerEmail(),
		Role:       diagram.RoleFor(q.UserID),
		CreatedAt:  diagram.CreatedAt().UnixMilli(),
		UpdatedAt:  diagram.UpdatedAt().UnixMilli(),
	}, nil
}
