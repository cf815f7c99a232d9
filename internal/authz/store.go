package authz

import (
	"context"
	"sync"
)

// OverrideStore owns per-user overrides. Implementations must make Merge atomic
// so readers never see half an override.
type OverrideStore interface {
	Get(ctx context.Context, userID string) (PermissionOverride, bool, error)
	// Merge replaces the fields set in o and returns the stored result.
	Merge(ctx context.Context, userID string, o PermissionOverride) (PermissionOverride, error)
	Delete(ctx context.Context, userID string) (bool, error)
}

type MemoryOverrideStore struct {
	mu sync.RWMutex
	m  map[string]PermissionOverride
}

func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{m: map[string]PermissionOverride{}}
}

func (s *MemoryOverrideStore) Get(_ context.Context, userID string) (PermissionOverride, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.m[userID]
	if !ok {
		return PermissionOverride{}, false, nil
	}
	return o.Clone(), true, nil
}

func (s *MemoryOverrideStore) Merge(_ context.Context, userID string, o PermissionOverride) (PermissionOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := s.m[userID].Merge(o)
	s.m[userID] = merged
	return merged.Clone(), nil
}

func (s *MemoryOverrideStore) Delete(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[userID]
	delete(s.m, userID)
	return ok, nil
}
