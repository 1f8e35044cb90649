// Package status carries progress from the provisioning worker to the shell.
package status

import (
	"fmt"
	"sync"

	"CSU/internal/model"
)

// DefaultCapacity bounds the worker to consumer queue.
const DefaultCapacity = 256

// EventKind discriminates Event payloads.
type EventKind int

const (
	EventClear EventKind = iota
	EventStatus
	EventProgress
	EventCompletion
)

// Completion is the terminal signal telling the shell which affordances to enable.
type Completion struct {
	Outcome      model.Outcome
	CanGoForward bool
	CanGoBack    bool
	CanCancel    bool
}

// Event is a single message from the worker.
type Event struct {
	Kind       EventKind
	Line       string
	Progress   int
	Completion Completion
}

// Reporter is what the worker-side components write to.
type Reporter interface {
	Clear()
	Status(format string, args ...interface{})
	Progress(value int)
	Reset()
	Complete(c Completion)
	Current() int
}

// gate keeps progress monotonic between resets.
type gate struct {
	mu      sync.Mutex
	current int
}

func (g *gate) advance(value int) (int, bool) {
	if value > 100 {
		value = 100
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if value <= g.current {
		return g.current, false
	}
	g.current = value
	return value, true
}

func (g *gate) reset() {
	g.mu.Lock()
	g.current = 0
	g.mu.Unlock()
}

func (g *gate) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Channel is a Reporter backed by a bounded FIFO queue with one consumer.
type Channel struct {
	gate
	events    chan Event
	closeOnce sync.Once
}

// NewChannel creates a Channel holding up to capacity pending events.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{events: make(chan Event, capacity)}
}

// Events is the consumer side of the queue.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close signals the consumer that no more events follow.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.events) })
}

func (c *Channel) Clear() {
	c.events <- Event{Kind: EventClear}
}

func (c *Channel) Status(format string, args ...interface{}) {
	c.events <- Event{Kind: EventStatus, Line: fmt.Sprintf(format, args...)}
}

// Progress publishes value when it is above the current progress.
func (c *Channel) Progress(value int) {
	if v, ok := c.advance(value); ok {
		c.events <- Event{Kind: EventProgress, Progress: v}
	}
}

// Reset drops progress back to zero.
func (c *Channel) Reset() {
	c.reset()
	c.events <- Event{Kind: EventProgress, Progress: 0}
}

func (c *Channel) Complete(done Completion) {
	c.events <- Event{Kind: EventCompletion, Completion: done}
}

func (c *Channel) Current() int {
	return c.value()
}

var _ Reporter = (*Channel)(nil)
