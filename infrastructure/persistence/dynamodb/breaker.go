package dynamodb

import (
	"context"
	"time"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/valueobjects"
	pkgerrors "flowcanvas-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerRepository wraps a DiagramRepository with a circuit breaker so
// a struggling table degrades to fast failures instead of piling up
// timed-out requests.
type BreakerRepository struct {
	inner   ports.DiagramRepository
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerRepository wraps the given repository with a circuit breaker
func NewBreakerRepository(inner ports.DiagramRepository, logger *zap.Logger) ports.DiagramRepository {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "diagram-store",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Domain outcomes are not store failures; only infrastructure
			// errors should count against the breaker.
			if err == nil {
				return true
			}
			return pkgerrors.IsNotFound(err) || pkgerrors.IsValidation(err) || pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict)
		},
	})

	return &BreakerRepository{inner: inner, breaker: cb}
}

func (r *BreakerRepository) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := r.breaker.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, pkgerrors.NewDatabaseError("circuit open", err)
	}
	return result, err
}

func (r *BreakerRepository) Create(ctx context.Context, diagram *aggregates.Diagram) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.Create(ctx, diagram)
	})
	return err
}

func (r *BreakerRepository) GetByID(ctx context.Context, id valueobjects.DiagramID) (*aggregates.Diagram, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.inner.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*aggregates.Diagram), nil
}

func (r *BreakerRepository) Update(ctx context.Context, diagram *aggregates.Diagram) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.Update(ctx, diagram)
	})
	return err
}

func (r *BreakerRepository) UpdateSharing(ctx context.Context, diagram *aggregates.Diagram) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.UpdateSharing(ctx, diagram)
	})
	return err
}

func (r *BreakerRepository) Delete(ctx context.Context, id valueobjects.DiagramID) error {
	_, err := r.execute(func() (interface{}, error) {
		return nil, r.inner.Delete(ctx, id)
	})
	return err
}

func (r *BreakerRepository) ListByOwner(ctx context.Context, userID string) ([]*aggregates.Diagram, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.inner.ListByOwner(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*aggregates.Diagram), nil
}

func (r *BreakerRepository) ListSharedWith(ctx context.Context, userID string) ([]*aggregates.Diagram, error) {
	result, err := r.execute(func() (interface{}, error) {
		return r.inner.ListSharedWith(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*aggregates.Diagram), nil
}
