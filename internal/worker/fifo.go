package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/pipeline"
	"github.com/makeasinger/midiconv/internal/progress"
)

// ErrQueueFull is returned by Submit when the queue is at capacity
var ErrQueueFull = errors.New("conversion queue is full")

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("conversion queue is closed")

// Processor converts one file
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) model.ConversionResult
}

// Item is one queued file
type Item struct {
	ID         string
	InputPath  string
	OutputPath string
	Config     model.ConversionConfig
}

// Result is delivered once per submitted item, including cancelled ones
type Result struct {
	Item   Item
	Result model.ConversionResult
}

type queued struct {
	item   Item
	ctx    context.Context
	cancel context.CancelFunc
}

// FIFO converts files one at a time in submission order on a single
// goroutine. Submit never blocks.
type FIFO struct {
	proc     Processor
	observer progress.Observer

	queue   chan *queued
	results chan Result

	mu      sync.Mutex
	pending map[string]*queued
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFIFO creates a queue holding up to capacity waiting items. observer
// may be nil.
func NewFIFO(proc Processor, capacity int, observer progress.Observer) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FIFO{
		proc:     proc,
		observer: observer,
		queue:    make(chan *queued, capacity),
		results:  make(chan Result, capacity+1),
		pending:  make(map[string]*queued),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start runs the worker goroutine
func (f *FIFO) Start() {
	go f.loop()
}

// Results delivers finished items. It is closed once the worker exits.
// Results left undrained when Close is called are dropped.
func (f *FIFO) Results() <-chan Result {
	return f.results
}

// Submit queues a file and returns its id
func (f *FIFO) Submit(inputPath, outputPath string, cfg model.ConversionConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", ErrClosed
	}

	ctx, cancel := context.WithCancel(f.ctx)
	q := &queued{
		item:   Item{ID: uuid.New().String(), InputPath: inputPath, OutputPath: outputPath, Config: cfg},
		ctx:    ctx,
		cancel: cancel,
	}
	select {
	case f.queue <- q:
	default:
		cancel()
		return "", ErrQueueFull
	}
	f.pending[q.item.ID] = q
	return q.item.ID, nil
}

// Cancel stops an item. A running item stops at its next stage boundary.
func (f *FIFO) Cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.pending[id]
	if ok {
		q.cancel()
	}
	return ok
}

// Pending returns the number of items queued or running
func (f *FIFO) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Close cancels everything and waits for the worker to exit
func (f *FIFO) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	f.cancel()
	<-f.done
}

// Wait lets queued items finish, then stops the worker
func (f *FIFO) Wait() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	<-f.done
}

func (f *FIFO) loop() {
	defer close(f.done)
	defer close(f.results)

	for q := range f.queue {
		res := f.run(q)

		f.mu.Lock()
		delete(f.pending, q.item.ID)
		f.mu.Unlock()
		q.cancel()

		f.deliver(Result{Item: q.item, Result: res})
	}
}

// deliver waits for a reader until Close. A result nobody drains by then is
// dropped.
func (f *FIFO) deliver(r Result) {
	select {
	case f.results <- r:
		return
	default:
	}
	select {
	case f.results <- r:
	case <-f.ctx.Done():
		log.Printf("Dropping result for %s, results not drained", r.Item.InputPath)
	}
}

func (f *FIFO) run(q *queued) (res model.ConversionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Conversion of %s panicked: %v", q.item.InputPath, r)
			res = model.ConversionResult{Success: false, ErrorMessage: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	if err := q.ctx.Err(); err != nil {
		return model.ConversionResult{Cancelled: true, ErrorMessage: "cancelled before start"}
	}

	log.Printf("Converting %s", q.item.InputPath)
	return f.proc.Process(q.ctx, pipeline.Request{
		InputPath:  q.item.InputPath,
		OutputPath: q.item.OutputPath,
		Config:     q.item.Config,
		Observer:   f.observer,
		JobID:      q.item.ID,
	})
}
