// Package memory provides in-process repository implementations used
// by local development and tests. Semantics mirror the DynamoDB
// implementations, including idempotent deletes and last-writer-wins
// updates.
package memory

import (
	"context"
	"fmt"
	"sync"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/valueobjects"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

// DiagramStore is a mutex-guarded map implementation of
// ports.DiagramRepository
type DiagramStore struct {
	mu       sync.RWMutex
	diagrams map[string]*aggregates.Diagram
}

// NewDiagramStore creates an empty in-memory diagram store
func NewDiagramStore() *DiagramStore {
	return &DiagramStore{
		diagrams: make(map[string]*aggregates.Diagram),
	}
}

var _ ports.DiagramRepository = (*DiagramStore)(nil)

// Create persists a new diagram and assigns its identifier. The ID is
// assigned only once the insert is guaranteed, so a failed first save
// leaves the aggregate unsaved and retryable.
func (s *DiagramStore) Create(ctx context.Context, diagram *aggregates.Diagram) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := diagram.ID()
	if !diagram.IsSaved() {
		id = valueobjects.NewDiagramID()
	}

	key := id.String()
	if _, exists := s.diagrams[key]; exists {
		return pkgerrors.NewConflictError("diagram already exists")
	}
	if !diagram.IsSaved() {
		if err := diagram.AssignID(id); err != nil {
			return err
		}
	}
	s.diagrams[key] = snapshot(diagram)
	return nil
}

// GetByID retrieves a diagram by its identifier
func (s *DiagramStore) GetByID(ctx context.Context, id valueobjects.DiagramID) (*aggregates.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagram, ok := s.diagrams[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("diagram %s not found", id.String()))
	}
	return snapshot(diagram), nil
}

// Update overwrites title and graph content of an existing diagram
func (s *DiagramStore) Update(ctx context.Context, diagram *aggregates.Diagram) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := diagram.ID().String()
	stored, ok := s.diagrams[key]
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("diagram %s not found", key))
	}

	updated, err := aggregates.ReconstructDiagram(
		stored.ID(),
		stored.OwnerID(),
		stored.OwnerEmail(),
		diagram.Title(),
		diagram.Nodes(),
		diagram.Edges(),
		stored.Grants(),
		stored.CreatedAt(),
		diagram.UpdatedAt(),
	)
	if err != nil {
		return err
	}
	s.diagrams[key] = updated
	return nil
}

// UpdateSharing overwrites the access list of an existing diagram
func (s *DiagramStore) UpdateSharing(ctx context.Context, diagram *aggregates.Diagram) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := diagram.ID().String()
	stored, ok := s.diagrams[key]
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("diagram %s not found", key))
	}

	updated, err := aggregates.ReconstructDiagram(
		stored.ID(),
		stored.OwnerID(),
		stored.OwnerEmail(),
		stored.Title(),
		stored.Nodes(),
		stored.Edges(),
		diagram.Grants(),
		stored.CreatedAt(),
		diagram.UpdatedAt(),
	)
	if err != nil {
		return err
	}
	s.diagrams[key] = updated
	return nil
}

// Delete removes a diagram; deleting an absent diagram is a no-op
func (s *DiagramStore) Delete(ctx context.Context, id valueobjects.DiagramID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.diagrams, id.String())
	return nil
}

// ListByOwner retrieves all diagrams owned by an identity
func (s *DiagramStore) ListByOwner(ctx context.Context, userID string) ([]*aggregates.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*aggregates.Diagram
	for _, d := range s.diagrams {
		if d.OwnerID() == userID {
			result = append(result, snapshot(d))
		}
	}
	return result, nil
}

// ListSharedWith retrieves all diagrams whose access list names the identity
func (s *DiagramStore) ListSharedWith(ctx context.Context, userID string) ([]*aggregates.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*aggregates.Diagram
	for _, d := range s.diagrams {
		for _, g := range d.Grants() {
			if g.UserID == userID {
				result = append(result, snapshot(d))
				break
			}
		}
	}
	return result, nil
}

// snapshot deep-copies a diagram so callers cannot mutate stored state
// through the returned aggregate
func snapshot(d *aggregates.Diagram) *aggregates.Diagram {
	copied, err := aggregates.ReconstructDiagram(
		d.ID(),
		d.OwnerID(),
		d.OwnerEmail(),
		d.Title(),
		d.Nodes(),
		d.Edges(),
		d.Grants(),
		d.CreatedAt(),
		d.UpdatedAt(),
	)
	if err != nil {
		// Stored aggregates were validated on the way in
		panic(err)
	}
	return copied
}
