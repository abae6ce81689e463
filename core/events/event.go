package events

import "vaultix/core/types"

// Event represents a structured notification emitted by the escrow core.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. the host log).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds emitted events until the owner decides whether the enclosing
// unit of work committed.
type Buffer struct {
	events []*types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	if payload := evt.Event(); payload != nil {
		b.events = append(b.events, payload.Clone())
	}
}

// Drain returns the buffered events and resets the buffer.
func (b *Buffer) Drain() []*types.Event {
	if b == nil {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}
