package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"zwave-console/hub"
)

// ConnState is the state of the event stream connection
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// ErrListenerClosed is returned by Connect after Close
var ErrListenerClosed = errors.New("event listener closed")

// ListenerOptions configures a Listener
type ListenerOptions struct {
	// URL of the event stream, including the topic filter
	URL string
	// Transport used for the stream; nil uses http.DefaultTransport
	Transport http.RoundTripper
	// ReconnectInterval is the delay before reopening a dropped stream; 0 disables reconnection
	ReconnectInterval time.Duration
}

// Listener keeps one event stream open and feeds every message to a Dispatcher
type Listener struct {
	url        string
	client     *http.Client
	dispatcher *Dispatcher
	reconnect  time.Duration

	mu     sync.Mutex
	state  ConnState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener creates a disconnected Listener
func NewListener(dispatcher *Dispatcher, opts ListenerOptions) *Listener {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Listener{
		url: opts.URL,
		// no overall timeout: the stream stays open indefinitely
		client:     &http.Client{Transport: transport},
		dispatcher: dispatcher,
		reconnect:  opts.ReconnectInterval,
	}
}

// State returns the current connection state
func (l *Listener) State() ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s ConnState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateClosed {
		l.state = s
	}
}

// Connect opens the event stream and starts dispatching in the background.
// A call while already connecting or connected does nothing. The stream ends
// when ctx is cancelled or Close is called.
func (l *Listener) Connect(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateClosed:
		l.mu.Unlock()
		return ErrListenerClosed
	case StateConnecting, StateConnected:
		l.mu.Unlock()
		return nil
	}
	l.state = StateConnecting
	streamCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	done := make(chan struct{})
	l.done = done
	l.mu.Unlock()

	body, err := l.open(streamCtx)
	if err != nil {
		cancel()
		close(done)
		l.setState(StateDisconnected)
		slog.Warn("Failed to open event stream", "url", l.url, "err", err)
		return err
	}

	l.setState(StateConnected)
	slog.Info("Event stream connected", "url", l.url)
	go l.run(streamCtx, body, done)
	return nil
}

// Close ends the stream and waits for the reader to stop.
// The listener cannot be reconnected afterwards.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.state = StateClosed
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (l *Listener) open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", l.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &hub.StatusError{Method: http.MethodGet, URL: l.url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (l *Listener) run(ctx context.Context, body io.ReadCloser, done chan struct{}) {
	defer close(done)
	for {
		err := readEvents(body, l.handle)
		_ = body.Close()
		if ctx.Err() != nil {
			l.setState(StateDisconnected)
			return
		}
		slog.Info("Event stream ended", "url", l.url, "err", err)

		if l.reconnect <= 0 {
			l.setState(StateDisconnected)
			return
		}
		l.setState(StateConnecting)
		body = l.reopen(ctx)
		if body == nil {
			l.setState(StateDisconnected)
			return
		}
		l.setState(StateConnected)
		slog.Info("Event stream reconnected", "url", l.url)
	}
}

// reopen retries at the reconnect interval until the stream opens or ctx ends
func (l *Listener) reopen(ctx context.Context) io.ReadCloser {
	timer := time.NewTimer(l.reconnect)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		body, err := l.open(ctx)
		if err == nil {
			return body
		}
		if ctx.Err() != nil {
			return nil
		}
		slog.Debug("Reconnect failed", "url", l.url, "err", err)
		timer.Reset(l.reconnect)
	}
}

func (l *Listener) handle(ev sseEvent) {
	if !ev.isMessage() {
		slog.Debug("Ignoring named event", "event", ev.Name)
		return
	}
	l.dispatcher.Dispatch(ev.Data)
}
