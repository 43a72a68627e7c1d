// Package editor owns the in-memory state of one open diagram for one
// acting identity and mediates every read and write of it against the
// document store.
package editor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	pkgerrors "flowcanvas-backend/pkg/errors"

	"go.uber.org/zap"
)

// ErrTitleRequired signals that the diagram has never been saved and
// the caller must supply a title before it can be persisted. There is
// no implicit title generation.
var ErrTitleRequired = errors.New("diagram has no identifier yet: a title is required to save it")

// Session is the diagram state module: the authoritative in-memory
// representation of one open diagram. Mutations are guarded by the
// effective role computed at load time; a failed store call leaves the
// session in its last-known-good state. Saves against the same
// identifier from different sessions are not coordinated; the last
// writer wins.
type Session struct {
	mu       sync.Mutex
	identity ports.Identity
	diagram  *aggregates.Diagram
	role     valueobjects.Role
	repo     ports.DiagramRepository
	bus      ports.EventBus
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewSession opens a session on a fresh unsaved starter diagram
func NewSession(identity ports.Identity, repo ports.DiagramRepository, bus ports.EventBus, logger *zap.Logger) (*Session, error) {
	diagram, err := aggregates.NewStarterDiagram(identity.UserID, identity.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		identity: identity,
		diagram:  diagram,
		role:     valueobjects.RoleOwner,
		repo:     repo,
		bus:      bus,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   logger,
	}, nil
}

// Role returns the effective role computed for the acting identity
func (s *Session) Role() valueobjects.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Diagram returns the open diagram
func (s *Session) Diagram() *aggregates.Diagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagram
}

// Load fetches a diagram document and adopts it as the open diagram.
// A missing document surfaces as NotFound; nothing retries. On success
// the effective role is recomputed for the acting identity.
func (s *Session) Load(ctx context.Context, id valueobjects.DiagramID) error {
	diagram, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return err
		}
		return pkgerrors.NewDatabaseError("load diagram", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagram = diagram
	s.role = diagram.RoleFor(s.identity.UserID)

	s.logger.Debug("diagram loaded",
		zap.String("diagramID", id.String()),
		zap.String("userID", s.identity.UserID),
		zap.String("role", string(s.role)),
	)
	return nil
}

// Save persists the open diagram. An unsaved diagram cannot be saved
// without a title: the caller receives ErrTitleRequired and is expected
// to call SaveNew. An already-persisted diagram gets a partial update
// of title, nodes and edges with a refreshed updated timestamp.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.diagram.IsSaved() {
		return ErrTitleRequired
	}
	if !s.role.CanMutate() {
		return pkgerrors.NewForbiddenError("role does not allow saving this diagram")
	}

	if err := s.repo.Update(ctx, s.diagram); err != nil {
		return pkgerrors.NewDatabaseError("save diagram", err)
	}
	s.publishEvents(ctx)

	s.logger.Info("diagram saved",
		zap.String("diagramID", s.diagram.ID().String()),
		zap.Int("nodes", s.diagram.NodeCount()),
		zap.Int("edges", s.diagram.EdgeCount()),
	)
	return nil
}

// SaveNew persists the open diagram for the first time under the given
// title, with an empty access list and the acting identity as owner.
// On success the session adopts the store-assigned identifier and the
// owner role.
func (s *Session) SaveNew(ctx context.Context, title string) (valueobjects.DiagramID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.diagram.IsSaved() {
		return valueobjects.DiagramID{}, pkgerrors.NewConflictError("diagram is already saved")
	}
	if err := s.diagram.Rename(title); err != nil {
		return valueobjects.DiagramID{}, err
	}

	if err := s.repo.Create(ctx, s.diagram); err != nil {
		return valueobjects.DiagramID{}, pkgerrors.NewDatabaseError("create diagram", err)
	}
	s.role = valueobjects.RoleOwner
	s.publishEvents(ctx)

	s.logger.Info("diagram created",
		zap.String("diagramID", s.diagram.ID().String()),
		zap.String("ownerID", s.identity.UserID),
		zap.String("title", title),
	)
	return s.diagram.ID(), nil
}

// AddNode appends a placeholder node at a jittered position. A no-op
// under the view role.
func (s *Session) AddNode() (entities.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.role.CanMutate() {
		return entities.Node{}, false
	}
	return s.diagram.ScatterNode(s.rng), true
}

// DeleteNode removes a node and cascade-removes its incident edges.
// A no-op under the view role.
func (s *Session) DeleteNode(nodeID valueobjects.NodeID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.role.CanMutate() {
		return false, nil
	}
	if err := s.diagram.RemoveNode(nodeID); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the diagram document and resets the session to a
// fresh unsaved diagram. Only the owner may delete.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.diagram.IsSaved() {
		return pkgerrors.NewValidationError("no saved diagram to delete")
	}
	if !s.role.CanDelete() {
		return pkgerrors.NewForbiddenError("only the diagram owner can delete this diagram")
	}

	deletedID := s.diagram.ID()
	if err := s.repo.Delete(ctx, deletedID); err != nil {
		return pkgerrors.NewDatabaseError("delete diagram", err)
	}
	s.diagram.MarkDeleted()
	s.publishEvents(ctx)

	fresh, err := aggregates.NewStarterDiagram(s.identity.UserID, s.identity.Email)
	if err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	s.diagram = fresh
	s.role = valueobjects.RoleOwner

	s.logger.Info("diagram deleted",
		zap.String("diagramID", deletedID.String()),
		zap.String("userID", s.identity.UserID),
	)
	return nil
}

// publishEvents flushes uncommitted domain events; delivery failures
// are logged and do not fail the operation. Callers hold s.mu.
func (s *Session) publishEvents(ctx context.Context) {
	pending := s.diagram.GetUncommittedEvents()
	if len(pending) == 0 {
		return
	}
	if err := s.bus.PublishBatch(ctx, pending); err != nil {
		s.logger.Warn("failed to publish diagram events", zap.Error(err))
	}
	s.diagram.MarkEventsAsCommitted()
}
