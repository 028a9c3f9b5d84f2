package events

import (
	"bufio"
	"bytes"
	"io"
)

const maxEventSize = 1 << 20

// sseEvent is one event of a text/event-stream body
type sseEvent struct {
	Name string
	ID   string
	Data []byte
}

// isMessage reports whether the event is a default "message" event
func (e sseEvent) isMessage() bool {
	return e.Name == "" || e.Name == "message"
}

// readEvents parses a text/event-stream body and calls fn for every complete
// event. It returns the reader's error, or nil at EOF.
func readEvents(r io.Reader, fn func(sseEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var (
		ev      sseEvent
		data    bytes.Buffer
		hasData bool
	)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			if hasData {
				ev.Data = bytes.Clone(data.Bytes())
				fn(ev)
			}
			ev = sseEvent{}
			data.Reset()
			hasData = false
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte{':'})
		value = bytes.TrimPrefix(value, []byte{' '})
		switch string(field) {
		case "event":
			ev.Name = string(value)
		case "id":
			ev.ID = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		}
	}
	return scanner.Err()
}
