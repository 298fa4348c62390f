package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"lekha.org/internal/ids"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with a single mutex: every mutating operation
// runs under the lock, which trivially serializes activation transitions.
// Used in tests and for running the API without Postgres.
type InMemory struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	events    []Event
}

// NewInMemory creates an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{artifacts: make(map[string]*Artifact)}
}

func (s *InMemory) Create(ctx context.Context, a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = ids.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Active = false
	cp := *a
	s.artifacts[a.ID] = &cp
	return nil
}

func (s *InMemory) Get(ctx context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) List(ctx context.Context) ([]*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemory) GetActive(ctx context.Context) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.artifacts {
		if a.Active {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNoActive
}

func (s *InMemory) Toggle(ctx context.Context, id string, enabled bool) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.Enabled = enabled
	if !enabled {
		a.Active = false
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) SetActive(ctx context.Context, id string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !a.Enabled {
		return nil, ErrInvalidState
	}
	for _, other := range s.artifacts {
		other.Active = false
	}
	a.Active = true
	cp := *a
	return &cp, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.artifacts, id)
	for i := range s.events {
		if s.events[i].ModelID == id {
			s.events[i].ModelID = ""
		}
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) InsertEvent(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.Source == "" {
		e.Source = "web"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *InMemory) Stats(ctx context.Context, since time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	st.TotalModels = len(s.artifacts)
	for _, a := range s.artifacts {
		if a.Enabled {
			st.EnabledModels++
		}
		if a.Active {
			cp := *a
			st.Active = &cp
		}
	}

	users := make(map[string]struct{})
	daily := make(map[string]int)
	for _, e := range s.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		if e.UserID != "" {
			users[e.UserID] = struct{}{}
		}
		daily[e.CreatedAt.UTC().Format("2006-01-02")]++
	}
	st.ActiveUsers = len(users)

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		st.Daily = append(st.Daily, DailyCount{Day: day, Count: daily[day]})
	}
	return st, nil
}
