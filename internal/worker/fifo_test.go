package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/pipeline"
	"github.com/makeasinger/midiconv/internal/progress"
)

// gatedProcessor blocks each item until release is closed or ctx ends
type gatedProcessor struct {
	mu      sync.Mutex
	order   []string
	started chan string
	release chan struct{}
}

func newGatedProcessor() *gatedProcessor {
	return &gatedProcessor{started: make(chan string, 16), release: make(chan struct{})}
}

func (p *gatedProcessor) Process(ctx context.Context, req pipeline.Request) model.ConversionResult {
	p.mu.Lock()
	p.order = append(p.order, req.InputPath)
	p.mu.Unlock()
	p.started <- req.InputPath

	if req.Observer != nil {
		req.Observer.Publish(progress.Update{JobID: req.JobID, Percent: 10, Stage: pipeline.StageLoading})
	}
	select {
	case <-p.release:
		return model.ConversionResult{Success: true, OutputPath: req.OutputPath}
	case <-ctx.Done():
		return model.ConversionResult{Cancelled: true, FailedStage: pipeline.StageLoading, ErrorMessage: ctx.Err().Error()}
	}
}

func collect(t *testing.T, f *FIFO, n int) []Result {
	t.Helper()
	var out []Result
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case r, ok := <-f.Results():
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatalf("timed out after %d of %d results", len(out), n)
		}
	}
	return out
}

func TestFIFO_ProcessesInOrder(t *testing.T) {
	proc := newGatedProcessor()
	close(proc.release)
	f := NewFIFO(proc, 4, nil)
	f.Start()
	defer f.Close()

	for _, in := range []string{"a.wav", "b.wav", "c.wav"} {
		if _, err := f.Submit(in, in+".mid", model.DefaultConversionConfig()); err != nil {
			t.Fatalf("Submit(%s) failed: %v", in, err)
		}
	}

	results := collect(t, f, 3)
	for i, want := range []string{"a.wav", "b.wav", "c.wav"} {
		if results[i].Item.InputPath != want {
			t.Errorf("result %d: expected %s, got %s", i, want, results[i].Item.InputPath)
		}
		if !results[i].Result.Success {
			t.Errorf("result %d: expected success", i)
		}
	}
}

func TestFIFO_SubmitNeverBlocks(t *testing.T) {
	proc := newGatedProcessor()
	f := NewFIFO(proc, 1, nil)
	f.Start()
	defer func() {
		close(proc.release)
		f.Close()
	}()

	if _, err := f.Submit("a.wav", "a.mid", model.DefaultConversionConfig()); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	<-proc.started // a.wav is running, queue is empty

	if _, err := f.Submit("b.wav", "b.mid", model.DefaultConversionConfig()); err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if _, err := f.Submit("c.wav", "c.mid", model.DefaultConversionConfig()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestFIFO_CancelRunningItem(t *testing.T) {
	proc := newGatedProcessor()
	f := NewFIFO(proc, 2, nil)
	f.Start()
	defer func() {
		close(proc.release)
		f.Close()
	}()

	id, err := f.Submit("a.wav", "a.mid", model.DefaultConversionConfig())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-proc.started
	if !f.Cancel(id) {
		t.Fatal("expected Cancel to find the item")
	}

	res := collect(t, f, 1)[0]
	if !res.Result.Cancelled {
		t.Errorf("expected cancelled result, got %+v", res.Result)
	}
	if res.Result.FailedStage != pipeline.StageLoading {
		t.Errorf("expected stage %s, got %s", pipeline.StageLoading, res.Result.FailedStage)
	}
	if f.Cancel(id) {
		t.Error("expected finished item to be unknown")
	}
}

func TestFIFO_CancelQueuedItem(t *testing.T) {
	proc := newGatedProcessor()
	f := NewFIFO(proc, 2, nil)
	f.Start()

	if _, err := f.Submit("a.wav", "a.mid", model.DefaultConversionConfig()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-proc.started
	id, err := f.Submit("b.wav", "b.mid", model.DefaultConversionConfig())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	f.Cancel(id)
	close(proc.release)

	results := collect(t, f, 2)
	if !results[0].Result.Success {
		t.Error("expected first item to succeed")
	}
	if !results[1].Result.Cancelled {
		t.Error("expected queued item to be cancelled")
	}
	f.Close()
}

func TestFIFO_ProgressReachesObserver(t *testing.T) {
	proc := newGatedProcessor()
	close(proc.release)
	updates := progress.NewChannel(8, progress.Block)
	f := NewFIFO(proc, 1, updates)
	f.Start()
	defer f.Close()

	id, err := f.Submit("a.wav", "a.mid", model.DefaultConversionConfig())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	select {
	case u := <-updates.Updates():
		if u.JobID != id {
			t.Errorf("expected job %s, got %s", id, u.JobID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no progress update")
	}
	collect(t, f, 1)
}

func TestFIFO_SubmitAfterClose(t *testing.T) {
	f := NewFIFO(newGatedProcessor(), 1, nil)
	f.Start()
	f.Close()

	if _, err := f.Submit("a.wav", "a.mid", model.DefaultConversionConfig()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-f.Results(); ok {
		t.Error("expected results channel to be closed")
	}
}

func TestFIFO_CloseWithUndrainedResults(t *testing.T) {
	proc := newGatedProcessor()
	close(proc.release)
	f := NewFIFO(proc, 1, nil)
	f.Start()

	// one more finished item than the results buffer holds, none read
	for i := 0; i < 3; i++ {
		if _, err := f.Submit("song.wav", "song.mid", model.DefaultConversionConfig()); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		select {
		case <-proc.started:
		case <-time.After(time.Second):
			t.Fatalf("item %d never started", i)
		}
		deadline := time.Now().Add(time.Second)
		for f.Pending() > 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}

	closed := make(chan struct{})
	go func() {
		f.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung on undrained results")
	}
}
