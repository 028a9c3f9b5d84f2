package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	data := []byte(`{"type":"ItemStateEvent","topic":"smarthome/items/Temp/state","payload":"{\"type\":\"Decimal\",\"value\":\"42\"}"}`)

	env, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, EventTypeItemState, env.Type)
	assert.Equal(t, []string{"smarthome", "items", "Temp", "state"}, env.TopicParts())

	payload, err := DecodePayload(env)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"type": "Decimal", "value": "42"}, payload)

	var state ItemStatePayload
	require.NoError(t, ParsePayload(env, &state))
	assert.Equal(t, "42", state.Value)
}

func TestParseEnvelopeMalformed(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"type":`))
	assert.Error(t, err)

	env := &Envelope{Type: "ItemStateEvent", Payload: "not json"}
	_, err = DecodePayload(env)
	assert.Error(t, err)
}

func TestDecodeEmptyPayload(t *testing.T) {
	env := &Envelope{Type: "ItemStateEvent"}

	payload, err := DecodePayload(env)
	require.NoError(t, err)
	assert.Nil(t, payload)

	var state ItemStatePayload
	assert.ErrorIs(t, ParsePayload(env, &state), ErrEmptyPayload)
}

func TestCreateEnvelope(t *testing.T) {
	env, err := CreateEnvelope(EventTypeItemState, "smarthome/items/Lamp/state", ItemStatePayload{Type: "OnOff", Value: "ON"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"OnOff","value":"ON"}`, env.Payload)

	var back ItemStatePayload
	require.NoError(t, ParsePayload(&env, &back))
	assert.Equal(t, "ON", back.Value)
}
