// Package sharing converts caller-supplied (email, permission) pairs
// into durable access-list entries on a diagram.
package sharing

import (
	"context"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	pkgerrors "flowcanvas-backend/pkg/errors"

	"go.uber.org/zap"
)

// Invitee is one requested grant, addressed by email. The email is
// transient: it exists only for the identity lookup and is discarded
// once resolved.
type Invitee struct {
	Email      string
	Permission valueobjects.Permission
}

// Report describes the outcome of a share operation, distinguishing
// full success from partial success.
type Report struct {
	SharedWith     []string // identities granted access
	NotFoundEmails []string // addresses with no registered profile
}

// AllResolved reports whether every submitted email resolved to a
// registered identity.
func (r Report) AllResolved() bool {
	return len(r.NotFoundEmails) == 0
}

// Resolver maps invitee emails to identities and merges the resulting
// grants into a diagram's access list.
type Resolver struct {
	diagrams ports.DiagramRepository
	users    ports.UserRepository
	bus      ports.EventBus
	logger   *zap.Logger
}

// NewResolver creates a sharing resolver
func NewResolver(diagrams ports.DiagramRepository, users ports.UserRepository, bus ports.EventBus, logger *zap.Logger) *Resolver {
	return &Resolver{diagrams: diagrams, users: users, bus: bus, logger: logger}
}

// Share grants the requested permissions on a diagram.
//
// Blank entries are dropped up front; an empty request is rejected.
// Each remaining email is resolved to an identity through a batched
// profile lookup; addresses with no registered profile are tracked as
// not found. If nothing resolves, the operation fails without writing.
// Resolved grants are merged into the access list by identity: an
// existing entry for the same identity is overwritten, a new identity
// is appended. The merged list is persisted with a refreshed
// updated timestamp. Duplicate emails collapse to one grant per
// identity at merge time, keeping whichever was processed last.
func (r *Resolver) Share(ctx context.Context, actor ports.Identity, diagramID valueobjects.DiagramID, invitees []Invitee) (*Report, error) {
	valid := make([]Invitee, 0, len(invitees))
	for _, inv := range invitees {
		email := entities.NormalizeEmail(inv.Email)
		if email == "" {
			continue
		}
		if !inv.Permission.IsValid() {
			return nil, pkgerrors.NewValidationError("unknown permission level for " + email)
		}
		valid = append(valid, Invitee{Email: email, Permission: inv.Permission})
	}
	if len(valid) == 0 {
		return nil, pkgerrors.NewValidationError("at least one valid email address is required")
	}

	diagram, err := r.diagrams.GetByID(ctx, diagramID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.NewDatabaseError("load diagram", err)
	}

	if !diagram.RoleFor(actor.UserID).CanShare() {
		return nil, pkgerrors.NewForbiddenError("only the diagram owner can share this diagram")
	}

	emails := make([]string, 0, len(valid))
	for _, inv := range valid {
		emails = append(emails, inv.Email)
	}

	resolved, err := r.users.FindByEmails(ctx, emails)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("resolve emails", err)
	}

	grants := make([]aggregates.Grant, 0, len(valid))
	notFound := make([]string, 0)
	for _, inv := range valid {
		userID, ok := resolved[inv.Email]
		if !ok {
			notFound = append(notFound, inv.Email)
			continue
		}
		grants = append(grants, aggregates.Grant{UserID: userID, Permission: inv.Permission})
	}

	if len(grants) == 0 {
		return nil, pkgerrors.NewNotFoundError("no users with the provided email addresses").
			WithDetails(map[string]interface{}{"emails": notFound})
	}

	shared, err := diagram.ApplyGrants(grants)
	if err != nil {
		return nil, err
	}

	if err := r.diagrams.UpdateSharing(ctx, diagram); err != nil {
		return nil, pkgerrors.NewDatabaseError("persist access list", err)
	}

	if pending := diagram.GetUncommittedEvents(); len(pending) > 0 {
		if err := r.bus.PublishBatch(ctx, pending); err != nil {
			r.logger.Warn("failed to publish sharing events", zap.Error(err))
		}
		diagram.MarkEventsAsCommitted()
	}

	r.logger.Info("diagram shared",
		zap.String("diagramID", diagramID.String()),
		zap.Int("granted", len(shared)),
		zap.Int("notFound", len(notFound)),
	)

	return &Report{SharedWith: shared, NotFoundEmails: notFound}, nil
}
