// Package progress delivers pipeline progress updates over a bounded channel.
package progress

import (
	"sync"
)

// Update is a single progress report
type Update struct {
	JobID   string `json:"jobId,omitempty"`
	Stem    string `json:"stem,omitempty"`
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

// Observer receives progress after each pipeline stage
type Observer interface {
	Publish(u Update)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(u Update)

func (f ObserverFunc) Publish(u Update) { f(u) }

// Nop discards every update
var Nop Observer = ObserverFunc(func(Update) {})

// Policy decides what Publish does when the buffer is full
type Policy int

const (
	// DropOldest discards the oldest queued update so the publisher never waits
	DropOldest Policy = iota
	// Block waits for the consumer
	Block
)

// Channel is a bounded Observer. Consumers read from Updates until it is closed.
type Channel struct {
	policy  Policy
	ch      chan Update
	done    chan struct{}
	mu      sync.Mutex
	once    sync.Once
	dropped int
}

// NewChannel creates a channel with the given capacity (minimum 1)
func NewChannel(capacity int, policy Policy) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{
		policy: policy,
		ch:     make(chan Update, capacity),
		done:   make(chan struct{}),
	}
}

// Publish enqueues u. It is a no-op after Close.
func (c *Channel) Publish(u Update) {
	if c.policy == Block {
		c.mu.Lock()
		defer c.mu.Unlock()
		select {
		case <-c.done:
			return
		default:
		}
		select {
		case c.ch <- u:
		case <-c.done:
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	for {
		select {
		case c.ch <- u:
			return
		default:
		}
		select {
		case <-c.ch:
			c.dropped++
		default:
		}
	}
}

// Updates returns the receive side
func (c *Channel) Updates() <-chan Update {
	return c.ch
}

// Dropped returns how many updates were discarded under DropOldest
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close stops delivery and closes Updates. Safe to call more than once.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		close(c.ch)
		c.mu.Unlock()
	})
}

// Multi fans an update out to several observers
type Multi []Observer

func (m Multi) Publish(u Update) {
	for _, o := range m {
		if o != nil {
			o.Publish(u)
		}
	}
}
