package repository

import (
	"context"
	"sync"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

// MemoryJobStore keeps jobs in process. Records are stored encoded so
// callers never share a *model.Job.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string][]byte
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string][]byte)}
}

func (s *MemoryJobStore) Save(ctx context.Context, job *model.Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[job.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	data, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("job %s not found", jobID)
	}
	return decodeJob(data)
}

func (s *MemoryJobStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryJobStore) Ping(ctx context.Context) error { return nil }

// MemoryLocker is a JobLocker for a single process
type MemoryLocker struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locked: make(map[string]struct{})}
}

func (l *MemoryLocker) TryLock(ctx context.Context, jobID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locked[jobID]; held {
		return nil, apperr.Busy(jobID)
	}
	l.locked[jobID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.locked, jobID)
			l.mu.Unlock()
		})
	}, nil
}
