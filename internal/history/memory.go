package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the history log in process memory, newest first.
// A retention bound of zero keeps everything; otherwise the oldest entries
// are evicted once the bound is exceeded.
type MemoryStore struct {
	mu        sync.Mutex
	entries   []Entry
	retention int
}

// NewMemoryStore builds an in-memory store retaining at most retention
// entries (0 means unbounded).
func NewMemoryStore(retention int) *MemoryStore {
	return &MemoryStore{retention: retention}
}

func (s *MemoryStore) Append(_ context.Context, entry NewEntry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Prompt:      entry.Prompt,
		Actions:     entry.Actions,
		Before:      entry.Before,
		After:       entry.After,
		Summary:     entry.Summary,
		StoreDomain: entry.StoreDomain,
		Status:      StatusExecuted,
	}
	s.entries = append([]Entry{stored}, s.entries...)
	if s.retention > 0 && len(s.entries) > s.retention {
		s.entries = s.entries[:s.retention]
	}
	return stored, nil
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.entries) {
		return []Entry{}, nil
	}
	end := len(s.entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]Entry, end-offset)
	copy(page, s.entries[offset:end])
	return page, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (s *MemoryStore) Transition(_ context.Context, id string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}
		if s.entries[i].Status != from {
			return ErrStatusConflict
		}
		s.entries[i].Status = to
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
