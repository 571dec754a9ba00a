// Package events publishes sign-up lifecycle events to an external stream.
// Emission is fire-and-forget from the caller's point of view: a buffered
// inbox decouples request latency from broker latency, and a full inbox drops
// the event rather than blocking the request.
package events

import (
	"context"
	"log/slog"
	"time"
)

const ActionSignup = "waitlist.signup"

// Event is the payload published for each accepted sign-up. It carries
// hashes, never plaintext contact data.
type Event struct {
	Action    string    `json:"action"`
	EntryID   string    `json:"entry_id"`
	EmailHash string    `json:"email_hash"`
	PhoneHash string    `json:"phone_hash"`
	Source    string    `json:"source,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers a single event to the downstream sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Emitter buffers events and hands them to the publisher from a background
// worker.
type Emitter struct {
	publisher Publisher
	inbox     chan Event
	logger    *slog.Logger
}

func NewEmitter(publisher Publisher, buffer int, logger *slog.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Emitter{
		publisher: publisher,
		inbox:     make(chan Event, buffer),
		logger:    logger,
	}
}

// Emit enqueues the event without blocking. When the inbox is full the event
// is dropped and logged; sign-up acceptance never waits on the stream.
func (e *Emitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.inbox <- event:
	default:
		e.logger.Warn("event inbox full, dropping event",
			"action", event.Action,
			"entry_id", event.EntryID,
		)
	}
}

// drainTimeout bounds the final flush on shutdown. Kept under the process
// shutdown deadline so a dead broker cannot hold the exit.
const drainTimeout = 5 * time.Second

// Run drains the inbox until the context is canceled, then flushes whatever
// is still buffered so sign-ups accepted in the final moments are not lost.
// Publish failures are logged and skipped; one bad event must not stall the
// stream.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case event := <-e.inbox:
			e.publish(ctx, event)
		}
	}
}

func (e *Emitter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-e.inbox:
			e.publish(ctx, event)
		default:
			return
		}
	}
}

func (e *Emitter) publish(ctx context.Context, event Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("publish event",
			"action", event.Action,
			"entry_id", event.EntryID,
			"error", err,
		)
	}
}
