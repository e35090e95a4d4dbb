package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeSeparate = "stems:separate"
	TaskTypeConvert  = "stems:convert"

	QueueSeparate = "separate"
	QueueConvert  = "convert"
)

// Dispatcher schedules the long-running stages of a job
type Dispatcher interface {
	DispatchSeparate(ctx context.Context, jobID string) error
	DispatchConvert(ctx context.Context, jobID string, opts ConvertOptions) error
}

// TaskPayload is the body of separate and convert tasks
type TaskPayload struct {
	JobID   string          `json:"jobId"`
	Options *ConvertOptions `json:"options,omitempty"`
}

// AsynqDispatcher enqueues stages onto Redis for the worker process
type AsynqDispatcher struct {
	asynqClient *asynq.Client
}

func NewAsynqDispatcher(asynqClient *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{asynqClient: asynqClient}
}

func (d *AsynqDispatcher) DispatchSeparate(ctx context.Context, jobID string) error {
	task, err := NewSeparateTask(jobID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return d.enqueue(ctx, task, QueueSeparate)
}

func (d *AsynqDispatcher) DispatchConvert(ctx context.Context, jobID string, opts ConvertOptions) error {
	task, err := NewConvertTask(jobID, opts)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return d.enqueue(ctx, task, QueueConvert)
}

// enqueue never retries: a failed stage leaves the job failed until reset
func (d *AsynqDispatcher) enqueue(ctx context.Context, task *asynq.Task, queue string) error {
	_, err := d.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.MaxRetry(0),
		asynq.Timeout(time.Hour),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func NewSeparateTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(TaskPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSeparate, data), nil
}

func NewConvertTask(jobID string, opts ConvertOptions) (*asynq.Task, error) {
	data, err := json.Marshal(TaskPayload{JobID: jobID, Options: &opts})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeConvert, data), nil
}

// ParseTaskPayload decodes a task body
func ParseTaskPayload(data []byte) (*TaskPayload, error) {
	var p TaskPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if p.JobID == "" {
		return nil, fmt.Errorf("task payload has no job id")
	}
	return &p, nil
}

// InlineDispatcher runs stages in-process, for single-node deployments
// without Redis and for tests. Async runs each stage on its own goroutine.
type InlineDispatcher struct {
	manager *StemJobManager
	async   bool
}

func NewInlineDispatcher(manager *StemJobManager, async bool) *InlineDispatcher {
	return &InlineDispatcher{manager: manager, async: async}
}

func (d *InlineDispatcher) DispatchSeparate(ctx context.Context, jobID string) error {
	return d.run(ctx, "separate", jobID, func(ctx context.Context) error {
		_, err := d.manager.Separate(ctx, jobID)
		return err
	})
}

func (d *InlineDispatcher) DispatchConvert(ctx context.Context, jobID string, opts ConvertOptions) error {
	return d.run(ctx, "convert", jobID, func(ctx context.Context) error {
		_, err := d.manager.Convert(ctx, jobID, opts)
		return err
	})
}

// run reports stage failures through the job record, not the caller
func (d *InlineDispatcher) run(ctx context.Context, name, jobID string, fn func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	if !d.async {
		if err := fn(ctx); err != nil {
			log.Printf("Inline %s for job %s failed: %v", name, jobID, err)
		}
		return nil
	}
	go func() {
		if err := fn(ctx); err != nil {
			log.Printf("Inline %s for job %s failed: %v", name, jobID, err)
		}
	}()
	return nil
}
