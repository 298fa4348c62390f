package registry

import (
	"context"
	"time"
)

// Store is the transactional persistence layer for artifacts and inference
// events. Toggle and SetActive must execute under a discipline that keeps
// the single-active invariant exact with respect to concurrent writers;
// read-then-write without locking is not an acceptable implementation.
type Store interface {
	Create(ctx context.Context, a *Artifact) error
	Get(ctx context.Context, id string) (*Artifact, error)
	List(ctx context.Context) ([]*Artifact, error)
	// GetActive returns the single active artifact or ErrNoActive.
	GetActive(ctx context.Context) (*Artifact, error)
	// Toggle sets enabled; disabling the active artifact also clears its
	// active flag in the same update.
	Toggle(ctx context.Context, id string, enabled bool) (*Artifact, error)
	// SetActive atomically clears the current active artifact (if any) and
	// marks the target active. Fails with ErrInvalidState when the target
	// is disabled.
	SetActive(ctx context.Context, id string) (*Artifact, error)
	// Delete removes the artifact, nulling the model reference on
	// historical events, and returns the removed row.
	Delete(ctx context.Context, id string) (*Artifact, error)

	InsertEvent(ctx context.Context, e *Event) error
	Stats(ctx context.Context, since time.Time) (Stats, error)
}
