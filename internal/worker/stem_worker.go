package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/midiconv/internal/service"
)

// StemWorker runs separate and convert tasks enqueued by the API
type StemWorker struct {
	manager *service.StemJobManager
}

// NewStemWorker creates a new stem worker
func NewStemWorker(manager *service.StemJobManager) *StemWorker {
	return &StemWorker{manager: manager}
}

// Register adds the task handlers to mux
func (w *StemWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(service.TaskTypeSeparate, w.ProcessSeparate)
	mux.HandleFunc(service.TaskTypeConvert, w.ProcessConvert)
}

// ProcessSeparate handles stems:separate tasks
func (w *StemWorker) ProcessSeparate(ctx context.Context, t *asynq.Task) error {
	payload, err := service.ParseTaskPayload(t.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log.Printf("Starting separate task for job: %s", payload.JobID)

	if _, err := w.manager.Separate(ctx, payload.JobID); err != nil {
		// the job record already carries the failure
		return fmt.Errorf("separate job %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}
	return nil
}

// ProcessConvert handles stems:convert tasks
func (w *StemWorker) ProcessConvert(ctx context.Context, t *asynq.Task) error {
	payload, err := service.ParseTaskPayload(t.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log.Printf("Starting convert task for job: %s", payload.JobID)

	opts := service.ConvertOptions{}
	if payload.Options != nil {
		opts = *payload.Options
	}
	if _, err := w.manager.Convert(ctx, payload.JobID, opts); err != nil {
		return fmt.Errorf("convert job %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}
	return nil
}
