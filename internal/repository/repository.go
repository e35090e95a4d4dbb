// Package repository persists job records and per-job locks.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/makeasinger/midiconv/internal/model"
)

// JobStore persists job records. Get returns an apperr NotFound error for
// unknown ids.
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	Delete(ctx context.Context, jobID string) error
	Ping(ctx context.Context) error
}

// JobLocker grants exclusive access to a job for the length of one stage
type JobLocker interface {
	// TryLock returns an unlock function, or an apperr busy error when the
	// job is already locked.
	TryLock(ctx context.Context, jobID string) (func(), error)
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func lockKey(jobID string) string {
	return fmt.Sprintf("lock:job:%s", jobID)
}

func encodeJob(job *model.Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

func decodeJob(data []byte) (*model.Job, error) {
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
