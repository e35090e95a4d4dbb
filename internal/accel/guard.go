// Package accel serializes inference calls per tenant and device.
package accel

import (
	"context"
	"sync"
)

// Handle limits inference to one call at a time per (tenant, device) key.
// Construct one per process and pass it to every caller that runs a model.
type Handle struct {
	device string
	mu     sync.Mutex
	slots  map[string]chan struct{}
}

// New returns a guard for the named device, e.g. "cpu" or "cuda:0"
func New(device string) *Handle {
	if device == "" {
		device = "cpu"
	}
	return &Handle{device: device, slots: make(map[string]chan struct{})}
}

// Device returns the device name
func (h *Handle) Device() string {
	return h.device
}

func (h *Handle) slot(tenant string) chan struct{} {
	key := tenant + "|" + h.device
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		h.slots[key] = s
	}
	return s
}

// Acquire blocks until the tenant's slot is free or ctx is done. The
// returned release must be called exactly once.
func (h *Handle) Acquire(ctx context.Context, tenant string) (func(), error) {
	s := h.slot(tenant)
	select {
	case s <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-s })
	}, nil
}

// Do runs fn while holding the tenant's slot
func (h *Handle) Do(ctx context.Context, tenant string, fn func(context.Context) error) error {
	release, err := h.Acquire(ctx, tenant)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
