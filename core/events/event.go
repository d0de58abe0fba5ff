package events

import "moneta/core/types"

// Emitter broadcasts engine events to downstream subscribers (RPC streams,
// audit sinks, indexers).
type Emitter interface {
	Emit(*types.Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines so event emission is always safe.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*types.Event) {}

// MultiEmitter fans a single event out to several emitters in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(evt *types.Event) {
	if evt == nil {
		return
	}
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
