package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zwave-console/protocol"
)

type recorded struct {
	env     protocol.Envelope
	payload interface{}
}

func recordInto(out *[]recorded) HandlerFunc {
	return func(env protocol.Envelope, payload interface{}) {
		*out = append(*out, recorded{env, payload})
	}
}

func TestDispatchItemStateEvent(t *testing.T) {
	d := NewDispatcher()
	var got []recorded
	d.Register(protocol.EventTypeItemState, recordInto(&got))

	msg := `{"type":"ItemStateEvent","topic":"smarthome/items/Lamp/state","payload":"{\"value\":\"42\"}"}`
	assert.True(t, d.Dispatch([]byte(msg)))

	require.Len(t, got, 1)
	assert.Equal(t, "ItemStateEvent", got[0].env.Type)
	assert.Equal(t, []string{"smarthome", "items", "Lamp", "state"}, got[0].env.TopicParts())
	assert.Equal(t, map[string]interface{}{"value": "42"}, got[0].payload)
}

func TestDispatchUnknownTypeIsDropped(t *testing.T) {
	d := NewDispatcher()
	var got []recorded
	d.Register(protocol.EventTypeItemState, recordInto(&got))

	msg := `{"type":"ThingAddedEvent","topic":"smarthome/things/x/added","payload":"{}"}`
	assert.False(t, d.Dispatch([]byte(msg)))
	assert.Empty(t, got)
}

func TestDispatchMalformed(t *testing.T) {
	d := NewDispatcher()
	var got []recorded
	d.Register(protocol.EventTypeItemState, recordInto(&got))

	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json`},
		{"payload not json", `{"type":"ItemStateEvent","topic":"t","payload":"{broken"}`},
		{"envelope is array", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, d.Dispatch([]byte(tt.data)))
		})
	}
	assert.Empty(t, got)
}

func TestDispatchEmptyPayload(t *testing.T) {
	d := NewDispatcher()
	var got []recorded
	d.Register(protocol.EventTypeThingStatusInfo, recordInto(&got))

	assert.True(t, d.Dispatch([]byte(`{"type":"ThingStatusInfoEvent","topic":"smarthome/things/t/status"}`)))
	require.Len(t, got, 1)
	assert.Nil(t, got[0].payload)
}

func TestRegisterOverwrites(t *testing.T) {
	d := NewDispatcher()
	var first, second []recorded
	d.Register(protocol.EventTypeItemCommand, recordInto(&first))
	d.Register(protocol.EventTypeItemCommand, recordInto(&second))

	assert.True(t, d.Dispatch([]byte(`{"type":"ItemCommandEvent","topic":"t","payload":"{\"value\":\"ON\"}"}`)))
	assert.Empty(t, first)
	assert.Len(t, second, 1)
	assert.Equal(t, []protocol.EventType{protocol.EventTypeItemCommand}, d.Types())
}

func TestAlsoKeepsExistingHandler(t *testing.T) {
	d := NewDispatcher()
	var first, second []recorded
	d.Also(protocol.EventTypeItemState, recordInto(&first))
	d.Also(protocol.EventTypeItemState, recordInto(&second))

	assert.True(t, d.Dispatch([]byte(`{"type":"ItemStateEvent","topic":"t","payload":"1"}`)))
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, float64(1), second[0].payload)
}

func TestHandlerPanicIsContained(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFunc(protocol.EventTypeItemState, func(protocol.Envelope, interface{}) {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		assert.False(t, d.Dispatch([]byte(`{"type":"ItemStateEvent","topic":"t","payload":"{}"}`)))
	})
}
