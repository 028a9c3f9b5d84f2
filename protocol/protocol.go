package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// EventType identifies the kind of event carried by an Envelope
type EventType = string

// Event types emitted by the hub on the smarthome topics
const (
	EventTypeItemState        EventType = "ItemStateEvent"
	EventTypeItemStateChanged EventType = "ItemStateChangedEvent"
	EventTypeItemCommand      EventType = "ItemCommandEvent"
	EventTypeThingStatusInfo  EventType = "ThingStatusInfoEvent"
	EventTypeInboxAdded       EventType = "InboxAddedEvent"
)

// EventTypes lists the event types the console knows how to present
var EventTypes = []EventType{
	EventTypeItemState,
	EventTypeItemStateChanged,
	EventTypeItemCommand,
	EventTypeThingStatusInfo,
	EventTypeInboxAdded,
}

// DefaultEventTopics is the topic filter requested from the event stream
const DefaultEventTopics = "smarthome/*"

const topicSeparator = "/"

// ErrEmptyPayload is returned by ParsePayload when the envelope carries no payload
var ErrEmptyPayload = errors.New("empty payload")

// Envelope is the outer wrapper of every message on the hub's event stream.
// Payload is itself a JSON document encoded as a string.
type Envelope struct {
	Type    EventType `json:"type"`
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
}

// TopicParts splits the topic on '/'
func (e Envelope) TopicParts() []string {
	if e.Topic == "" {
		return nil
	}
	return strings.Split(e.Topic, topicSeparator)
}

// ItemStatePayload is the payload of item state and command events
type ItemStatePayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ItemStateChangedPayload is the payload of ItemStateChangedEvent
type ItemStateChangedPayload struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	OldType  string `json:"oldType"`
	OldValue string `json:"oldValue"`
}

// CreateEnvelope encodes payload and wraps it in an Envelope
func CreateEnvelope(eventType EventType, topic string, payload interface{}) (Envelope, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:    eventType,
		Topic:   topic,
		Payload: string(payloadBytes),
	}, nil
}

// ParseEnvelope parses one event-stream message into an Envelope
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodePayload decodes the envelope payload into generic JSON values.
// An empty payload decodes to nil.
func DecodePayload(env *Envelope) (interface{}, error) {
	if strings.TrimSpace(env.Payload) == "" {
		return nil, nil
	}
	var payload interface{}
	if err := json.Unmarshal([]byte(env.Payload), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ParsePayload decodes the envelope payload into the given struct
func ParsePayload(env *Envelope, payload interface{}) error {
	if strings.TrimSpace(env.Payload) == "" {
		return ErrEmptyPayload
	}
	return json.Unmarshal([]byte(env.Payload), payload)
}
