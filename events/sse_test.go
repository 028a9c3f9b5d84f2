package events

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestReadEvents(t *testing.T) {
	body := strings.Join([]string{
		": keep-alive",
		"data: {\"a\":1}",
		"",
		"event: result",
		"id: 7",
		"data:first",
		"data: second",
		"",
		"",
		"data: trailing without blank line",
	}, "\n")

	var got []sseEvent
	err := readEvents(strings.NewReader(body), func(ev sseEvent) {
		got = append(got, ev)
	})
	assert.NoError(t, err)

	want := []sseEvent{
		{Data: []byte(`{"a":1}`)},
		{Name: "result", ID: "7", Data: []byte("first\nsecond")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got[0].isMessage())
	assert.False(t, got[1].isMessage())
}

func TestReadEventsCRLF(t *testing.T) {
	var got []sseEvent
	err := readEvents(strings.NewReader("data: x\r\n\r\n"), func(ev sseEvent) {
		got = append(got, ev)
	})
	assert.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "x", string(got[0].Data))
	}
}
