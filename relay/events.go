package relay

import (
	"encoding/json"
	"log/slog"

	"zwave-console/events"
	"zwave-console/protocol"
)

// Message is the JSON document sent to relay consumers for each event
type Message struct {
	Type    protocol.EventType `json:"type"`
	Topic   string             `json:"topic"`
	Payload interface{}        `json:"payload"`
}

// Broadcaster sends a message to every connected consumer
type Broadcaster interface {
	BroadcastMessage(message []byte) error
}

// EventHandler returns a handler that broadcasts every event it receives
func EventHandler(b Broadcaster) events.Handler {
	return events.HandlerFunc(func(env protocol.Envelope, payload interface{}) {
		data, err := json.Marshal(Message{Type: env.Type, Topic: env.Topic, Payload: payload})
		if err != nil {
			slog.Warn("Failed to encode relay message", "type", env.Type, "err", err)
			return
		}
		if err := b.BroadcastMessage(data); err != nil {
			slog.Warn("Failed to relay event", "type", env.Type, "err", err)
		}
	})
}

// RegisterAll attaches h to every event type in types, next to existing handlers
func RegisterAll(d *events.Dispatcher, h events.Handler, types []protocol.EventType) {
	for _, t := range types {
		d.Also(t, h)
	}
}
