package registry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"lekha.org/internal/blob"
	"lekha.org/internal/ids"
)

const defaultVersion = "v1"

// CreateSpec is the validated input for registering an artifact.
type CreateSpec struct {
	Name         string
	Architecture string
	Version      string
	Description  string
	OwnerID      string
}

// Service owns the artifact lifecycle: it validates input, stores weight
// blobs, and drives the Store state machine.
type Service struct {
	store Store
	blobs blob.Store
}

// NewService constructs the registry service.
func NewService(store Store, blobs blob.Store) *Service {
	return &Service{store: store, blobs: blobs}
}

// Create registers a new artifact from its metadata and weights stream.
// Fresh artifacts are enabled and never active.
func (s *Service) Create(ctx context.Context, spec CreateSpec, weights io.Reader) (*Artifact, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	arch, err := ParseArchitecture(strings.TrimSpace(spec.Architecture))
	if err != nil {
		return nil, err
	}
	if weights == nil {
		return nil, &ValidationError{Field: "file", Reason: "is required"}
	}
	version := strings.TrimSpace(spec.Version)
	if version == "" {
		version = defaultVersion
	}

	id := ids.New()
	ref := fmt.Sprintf("models/%s.bin", id)
	if _, err := s.blobs.Put(ctx, ref, weights); err != nil {
		return nil, fmt.Errorf("store weights: %w", err)
	}

	a := &Artifact{
		ID:           id,
		Name:         name,
		Architecture: arch,
		Version:      version,
		Description:  strings.TrimSpace(spec.Description),
		BlobRef:      ref,
		Enabled:      true,
		OwnerID:      spec.OwnerID,
	}
	if err := s.store.Create(ctx, a); err != nil {
		// Roll the blob back so a failed insert leaves no orphan file.
		_ = s.blobs.Delete(ctx, ref)
		return nil, err
	}
	return a, nil
}

// Get returns one artifact by id.
func (s *Service) Get(ctx context.Context, id string) (*Artifact, error) {
	return s.store.Get(ctx, id)
}

// List returns all artifacts, newest first.
func (s *Service) List(ctx context.Context) ([]*Artifact, error) {
	return s.store.List(ctx)
}

// GetActive returns the single active artifact or ErrNoActive.
func (s *Service) GetActive(ctx context.Context) (*Artifact, error) {
	return s.store.GetActive(ctx)
}

// Toggle flips the enabled flag; disabling the active artifact deactivates
// it in the same transition.
func (s *Service) Toggle(ctx context.Context, id string, enabled bool) (*Artifact, error) {
	return s.store.Toggle(ctx, id, enabled)
}

// SetActive makes the target the single active artifact.
func (s *Service) SetActive(ctx context.Context, id string) (*Artifact, error) {
	return s.store.SetActive(ctx, id)
}

// Delete releases the artifact's blob, then removes the row. Historical
// events keep a nulled model reference. Blob release is idempotent, so a
// retried delete after a partial failure converges.
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.BlobRef != "" {
		if err := s.blobs.Delete(ctx, a.BlobRef); err != nil {
			return fmt.Errorf("release weights: %w", err)
		}
	}
	_, err = s.store.Delete(ctx, id)
	return err
}

// OpenWeights streams the weights blob for an artifact.
func (s *Service) OpenWeights(ctx context.Context, a *Artifact) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, a.BlobRef)
}

// RecordEvent appends an inference event. Failures are the caller's to
// log; classification results never depend on event persistence.
func (s *Service) RecordEvent(ctx context.Context, userID, modelID, source string) error {
	return s.store.InsertEvent(ctx, &Event{UserID: userID, ModelID: modelID, Source: source})
}

// Overview aggregates the admin dashboard numbers over the trailing week.
func (s *Service) Overview(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx, time.Now().UTC().AddDate(0, 0, -7))
}
