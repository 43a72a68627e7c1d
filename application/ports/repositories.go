package ports

import (
	"context"
	"time"

	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	"flowcanvas-backend/domain/events"
)

// DiagramRepository is the port to the diagrams collection of the
// document store. Implementations own serialization and querying; the
// store provides no cross-document guarantees, and concurrent updates
// to the same identifier are last-writer-wins.
type DiagramRepository interface {
	// Create persists a new diagram and assigns its identifier
	Create(ctx context.Context, diagram *aggregates.Diagram) error

	// GetByID retrieves a diagram by its identifier
	GetByID(ctx context.Context, id valueobjects.DiagramID) (*aggregates.Diagram, error)

	// Update partially updates title, nodes, edges and the updated timestamp
	Update(ctx context.Context, diagram *aggregates.Diagram) error

	// UpdateSharing partially updates the access list and the updated timestamp
	UpdateSharing(ctx context.Context, diagram *aggregates.Diagram) error

	// Delete removes the diagram document
	Delete(ctx context.Context, id valueobjects.DiagramID) error

	// ListByOwner retrieves all diagrams owned by an identity
	ListByOwner(ctx context.Context, userID string) ([]*aggregates.Diagram, error)

	// ListSharedWith retrieves all diagrams shared with an identity
	ListSharedWith(ctx context.Context, userID string) ([]*aggregates.Diagram, error)
}

// UserRepository is the port to the users collection
type UserRepository interface {
	// GetByID retrieves a profile by identity
	GetByID(ctx context.Context, id string) (*entities.UserProfile, error)

	// Put stores a profile (create or full replace)
	Put(ctx context.Context, user *entities.UserProfile) error

	// RecordLogin merge-sets the last login timestamp without touching
	// the rest of the profile
	RecordLogin(ctx context.Context, id string, at time.Time) error

	// FindByEmail resolves one email to a profile
	FindByEmail(ctx context.Context, email string) (*entities.UserProfile, error)

	// FindByEmails resolves a batch of emails, returning a map from
	// email to identity for every registered address. Unregistered
	// addresses are simply absent from the result.
	FindByEmails(ctx context.Context, emails []string) (map[string]string, error)
}

// EventBus publishes domain events to interested consumers
type EventBus interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
