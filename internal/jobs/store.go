package jobs

import (
	"context"
	"sync"

	"studio/internal/domain"
)

// Store keeps the latest snapshot per job id.
type Store interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	Get(ctx context.Context, jobID string) (domain.Snapshot, error)
	Delete(ctx context.Context, jobID string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]domain.Snapshot)}
}

func (s *MemoryStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.JobID] = snap
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[jobID]
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, jobID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
