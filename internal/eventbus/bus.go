// Package eventbus fans lamp events (phase dispatches, control commands,
// mode changes, clock resyncs) out to observers on a bounded worker pool.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	EventTypePhase   EventType = "phase"
	EventTypeCommand EventType = "command"
	EventTypeMode    EventType = "mode"
	EventTypeClock   EventType = "clock"
)

// AllEventTypes lists every type, for subscribers that observe everything.
var AllEventTypes = []EventType{EventTypePhase, EventTypeCommand, EventTypeMode, EventTypeClock}

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// Event represents an event in the system
type Event struct {
	Type EventType
	Time time.Time
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// work represents a unit of work for the worker pool
type work struct {
	event   Event
	handler Handler
}

// Bus provides event routing with a bounded worker pool
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	// Worker pool
	workQueue chan work
	wg        sync.WaitGroup

	// Shutdown signaling - closing this channel signals publishers to stop
	// Using a channel in select is race-free (unlike mutex + bool)
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	b := &Bus{
		handlers:  make(map[EventType][]Handler),
		workQueue: make(chan work, queueSize),
		closing:   make(chan struct{}),
	}

	// Start worker pool
	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

// worker processes events from the work queue until the bus closes, then
// drains what is left.
func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for {
		select {
		case w := <-b.workQueue:
			b.handle(id, w)
		case <-b.closing:
			for {
				select {
				case w := <-b.workQueue:
					b.handle(id, w)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) handle(id int, w work) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", string(w.event.Type)).
				Int("worker", id).
				Msg("Event handler panicked")
		}
	}()
	w.handler(w.event)
}

// Subscribe registers a handler for the given event types
func (b *Bus) Subscribe(handler Handler, types ...EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], handler)
	}
}

// Publish sends an event to all subscribed handlers.
// Non-blocking: if the work queue is full or bus is closing, events are dropped.
// Uses channel-based signaling for race-free shutdown detection.
// A nil bus discards events.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		select {
		case <-b.closing:
			return
		default:
		}

		select {
		case <-b.closing:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
			return
		case b.workQueue <- work{event: event, handler: handler}:
			// Successfully queued
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close shuts down the worker pool gracefully.
// Publishers are signalled to stop, workers drain the queue and exit.
// The work queue is never closed, so a racing Publish cannot panic.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)
	})

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}

