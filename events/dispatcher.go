// Package events consumes the hub's server-sent event stream and routes each
// event to the handler registered for its type.
package events

import (
	"log/slog"
	"sync"

	"golang.org/x/exp/slices"

	"zwave-console/protocol"
)

// Handler receives a decoded event. payload is the envelope's payload decoded
// as generic JSON (maps, slices, strings, float64, bool or nil).
type Handler interface {
	HandleEvent(env protocol.Envelope, payload interface{})
}

// HandlerFunc adapts a plain function to Handler
type HandlerFunc func(env protocol.Envelope, payload interface{})

func (f HandlerFunc) HandleEvent(env protocol.Envelope, payload interface{}) {
	f(env, payload)
}

// Chain returns a Handler that calls each handler in order
func Chain(handlers ...Handler) Handler {
	hs := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return HandlerFunc(func(env protocol.Envelope, payload interface{}) {
		for _, h := range hs {
			h.HandleEvent(env, payload)
		}
	})
}

// Dispatcher maps event types to handlers.
// Handlers are registered at startup and never removed.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[protocol.EventType]Handler
}

// NewDispatcher creates an empty Dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.EventType]Handler),
	}
}

// Register installs h for eventType, replacing any earlier handler
func (d *Dispatcher) Register(eventType protocol.EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[eventType]; exists {
		slog.Debug("Replacing event handler", "type", eventType)
	}
	d.handlers[eventType] = h
}

// RegisterFunc is Register for plain functions
func (d *Dispatcher) RegisterFunc(eventType protocol.EventType, fn func(env protocol.Envelope, payload interface{})) {
	d.Register(eventType, HandlerFunc(fn))
}

// Also adds h next to whatever is already registered for eventType
func (d *Dispatcher) Also(eventType protocol.EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.handlers[eventType]; ok {
		d.handlers[eventType] = Chain(prev, h)
		return
	}
	d.handlers[eventType] = h
}

// Handler returns the handler registered for eventType
func (d *Dispatcher) Handler(eventType protocol.EventType) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[eventType]
	return h, ok
}

// Types lists the registered event types in sorted order
func (d *Dispatcher) Types() []protocol.EventType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]protocol.EventType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Dispatch decodes one stream message and hands it to the registered handler.
// It reports whether a handler was called. Malformed messages and events
// without a handler are dropped.
func (d *Dispatcher) Dispatch(data []byte) bool {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		slog.Debug("Dropping malformed event", "err", err, "data", string(data))
		return false
	}
	payload, err := protocol.DecodePayload(env)
	if err != nil {
		slog.Debug("Dropping event with malformed payload", "type", env.Type, "topic", env.Topic, "err", err)
		return false
	}

	h, ok := d.Handler(env.Type)
	if !ok {
		slog.Debug("No handler for event", "type", env.Type, "topic", env.Topic)
		return false
	}
	return d.invoke(h, *env, payload)
}

func (d *Dispatcher) invoke(h Handler, env protocol.Envelope, payload interface{}) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "type", env.Type, "topic", env.Topic, "panic", r)
			ok = false
		}
	}()
	h.HandleEvent(env, payload)
	return true
}
