package queries

import (
	"context"
	"sort"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/valueobjects"

	"go.uber.org/zap"
)

// ListDiagramsQuery requests every diagram the identity can open:
// owned plus shared, deduplicated by identifier.
type ListDiagramsQuery struct {
	UserID string
}

// DiagramSummary is one dashboard row
type DiagramSummary struct {
	ID         string
	Title      string
	OwnerID    string
	OwnerEmail string
	Role       valueobjects.Role
	NodeCount  int
	EdgeCount  int
	UpdatedAt  int64 // epoch ms
}

// ListDiagramsHandler serves ListDiagramsQuery
type ListDiagramsHandler struct {
	diagrams ports.DiagramRepository
	logger   *zap.Logger
}

// NewListDiagramsHandler creates the handler
func NewListDiagramsHandler(diagrams ports.DiagramRepository, logger *zap.Logger) *ListDiagramsHandler {
	return &ListDiagramsHandler{diagrams: diagrams, logger: logger}
}

// Handle executes the query. Owned and shared listings are fetched
// independently and merged by identifier, owned entries taking
// precedence, newest first.
func (h *ListDiagramsHandler) Handle(ctx context.Context, q ListDiagramsQuery) ([]DiagramSummary, error) {
	owned, err := h.diagrams.ListByOwner(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	shared, err := h.diagrams.ListSharedWith(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(owned)+len(shared))
	summaries := make([]DiagramSummary, 0, len(owned)+len(shared))
	for _, d := range append(owned, shared...) {
		if seen[d.ID().String()] {
			continue
		}
		seen[d.ID().String()] = true
		summaries = append(summaries, DiagramSummary{
			ID:         d.ID().String(),
			Title:      d.Title(),
			OwnerID:    d.OwnerID(),
			OwnerEmail: d.OwnerEmail(),
			Role:       d.RoleFor(q.UserID),
			NodeCount:  d.NodeCount(),
			EdgeCount:  d.EdgeCount(),
			UpdatedAt:  d.UpdatedAt().UnixMilli(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})

	return summaries, nil
}
