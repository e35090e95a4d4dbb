package accel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestHandle_SerializesPerTenant(t *testing.T) {
	h := New("cuda:0")
	var active, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.Do(context.Background(), "tenant-a", func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("expected at most one concurrent call, saw %d", peak)
	}
}

func TestHandle_TenantsAreIndependent(t *testing.T) {
	h := New("")
	release, err := h.Acquire(context.Background(), "tenant-a")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := h.Acquire(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("other tenant blocked: %v", err)
	}
	other()
}

func TestHandle_AcquireHonorsContext(t *testing.T) {
	h := New("cpu")
	release, err := h.Acquire(context.Background(), "t")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Acquire(ctx, "t"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	release()
	release()
	again, err := h.Acquire(context.Background(), "t")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	again()
}
