// Package gateway declares the remote data gateway and clock consumed by the
// cache layer. Both are injectable so tests run deterministic and offline.
package gateway

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/akarev/keepup/internal/model"
)

// Gateway is the remote source of truth for entities and events.
//
// Implementations map transport failures onto the errs sentinels:
// errs.ErrUnavailable for a backend that is starting up or overloaded,
// errs.ErrTimeout, errs.ErrValidation, errs.ErrNotFound. Anything else
// propagates unclassified. Request timeouts are the implementation's
// responsibility.
type Gateway interface {
	// ListEntities returns all entities for the authenticated user.
	ListEntities(ctx context.Context) ([]model.Entity, error)

	// CreateEntity stores a new entity and returns it with the
	// backend-assigned id.
	CreateEntity(ctx context.Context, e model.Entity) (model.Entity, error)

	// UpdateEntity replaces the mutable fields of an existing entity.
	UpdateEntity(ctx context.Context, e model.Entity) (model.Entity, error)

	// DeleteEntity removes an entity; its events stop being reachable.
	DeleteEntity(ctx context.Context, id uuid.UUID) error

	// ListEvents returns every event tagged to the entity.
	ListEvents(ctx context.Context, entityID uuid.UUID) ([]model.Event, error)

	// CreateEvent stores a new event and returns it with the
	// backend-assigned id.
	CreateEvent(ctx context.Context, ev model.Event) (model.Event, error)

	// DeleteEvent removes a single event.
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	// Ping is a lightweight health probe used during backoff warm-up.
	Ping(ctx context.Context) error
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }
