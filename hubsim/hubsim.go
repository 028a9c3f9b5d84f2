// Package hubsim is a small in-memory stand-in for the hub's configuration
// and event-stream endpoints. It backs the package tests and cmd/hubsim.
package hubsim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-contrib/sse"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"zwave-console/protocol"
)

// RootDomain is the domain of the top level of the configuration tree
const RootDomain = "nodes/"

const subscriberBuffer = 64

// WriteKind distinguishes value writes from action invocations
type WriteKind string

const (
	WriteSet    WriteKind = "set"
	WriteAction WriteKind = "action"
)

// Write records one PUT received by the hub
type Write struct {
	Kind   WriteKind
	Domain string
	Body   string
}

type subscriber struct {
	filter string
	ch     chan protocol.Envelope
}

// Hub holds the simulated configuration tree
type Hub struct {
	mu          sync.Mutex
	nodes       map[string]protocol.ConfigNode
	order       []string
	writes      []Write
	gets        map[string]int
	failWrites  bool
	failReads   bool
	subscribers map[*subscriber]struct{}
	closed      chan struct{}
	closeOnce   sync.Once

	echo *echo.Echo
}

// New creates a hub seeded with nodes
func New(nodes ...protocol.ConfigNode) *Hub {
	h := &Hub{
		nodes:       make(map[string]protocol.ConfigNode),
		gets:        make(map[string]int),
		subscribers: make(map[*subscriber]struct{}),
		closed:      make(chan struct{}),
	}
	for _, n := range nodes {
		h.SetNode(n)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/rest/zwave", h.handleGet)
	e.GET("/rest/zwave/*", h.handleGet)
	e.PUT("/rest/zwave/set/*", h.handleWrite(WriteSet))
	e.PUT("/rest/zwave/action/*", h.handleWrite(WriteAction))
	e.GET("/rest/events", h.handleEvents)
	h.echo = e

	return h
}

// Handler returns the HTTP handler serving the hub's routes
func (h *Hub) Handler() http.Handler {
	return h.echo
}

// Start serves the hub on addr until Shutdown is called
func (h *Hub) Start(addr string) error {
	if err := h.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown ends open event streams and stops a hub started with Start
func (h *Hub) Shutdown(ctx context.Context) error {
	h.Close()
	return h.echo.Shutdown(ctx)
}

// Close ends all open event streams
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// SetNode inserts or replaces a node
func (h *Hub) SetNode(n protocol.ConfigNode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.nodes[n.Domain]; !ok {
		h.order = append(h.order, n.Domain)
	}
	h.nodes[n.Domain] = n
}

// Node returns the node stored for domain
func (h *Hub) Node(domain string) (protocol.ConfigNode, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[domain]
	return n, ok
}

// UpdateValue changes the value and state of an existing node
func (h *Hub) UpdateValue(domain, value string, state protocol.NodeState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[domain]
	if !ok {
		return false
	}
	n.Value = value
	n.State = state
	h.nodes[domain] = n
	return true
}

// Writes returns the PUT requests received so far
func (h *Hub) Writes() []Write {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Write, len(h.writes))
	copy(out, h.writes)
	return out
}

// GetCount returns how many times domain was read ("" is the top level)
func (h *Hub) GetCount(domain string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gets[domain]
}

// SetFailWrites makes every PUT answer 500
func (h *Hub) SetFailWrites(fail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failWrites = fail
}

// SetFailReads makes every configuration GET answer 500
func (h *Hub) SetFailReads(fail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failReads = fail
}

// Subscribers returns the number of open event streams
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish sends an event to every stream whose topic filter matches.
// It returns the number of streams the event was queued on.
func (h *Hub) Publish(eventType protocol.EventType, topic string, payload interface{}) (int, error) {
	env, err := protocol.CreateEnvelope(eventType, topic, payload)
	if err != nil {
		return 0, err
	}
	return h.PublishEnvelope(env), nil
}

// PublishEnvelope sends a prepared envelope, see Publish
func (h *Hub) PublishEnvelope(env protocol.Envelope) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subscribers {
		if !matchTopics(sub.filter, env.Topic) {
			continue
		}
		select {
		case sub.ch <- env:
			delivered++
		default:
			slog.Warn("hubsim: subscriber queue full, event dropped", "topic", env.Topic)
		}
	}
	return delivered
}

// Children returns the direct children of a branch domain in insertion order
func (h *Hub) Children(domain string) []protocol.ConfigNode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.childrenLocked(domain)
}

func (h *Hub) childrenLocked(domain string) []protocol.ConfigNode {
	var out []protocol.ConfigNode
	for _, d := range h.order {
		if isDirectChild(domain, d) {
			out = append(out, h.nodes[d])
		}
	}
	return out
}

func isDirectChild(parent, domain string) bool {
	if !strings.HasPrefix(domain, parent) {
		return false
	}
	rest := strings.TrimPrefix(domain, parent)
	if rest == "" {
		return false
	}
	idx := strings.Index(rest, "/")
	return idx == -1 || idx == len(rest)-1
}

func (h *Hub) handleGet(c echo.Context) error {
	domain := c.Param("*")

	h.mu.Lock()
	h.gets[domain]++
	if h.failReads {
		h.mu.Unlock()
		return c.NoContent(http.StatusInternalServerError)
	}

	var records []protocol.ConfigNode
	switch {
	case domain == "":
		records = h.childrenLocked(RootDomain)
	case protocol.IsBranchDomain(domain):
		records = h.childrenLocked(domain)
	default:
		if n, ok := h.nodes[domain]; ok {
			records = []protocol.ConfigNode{n}
		}
	}
	h.mu.Unlock()

	if records == nil {
		records = []protocol.ConfigNode{}
	}
	return c.JSON(http.StatusOK, protocol.RecordsResponse{Records: records})
}

func (h *Hub) handleWrite(kind WriteKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		domain := c.Param("*")
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}

		h.mu.Lock()
		defer h.mu.Unlock()

		h.writes = append(h.writes, Write{Kind: kind, Domain: domain, Body: string(body)})
		if h.failWrites {
			return c.NoContent(http.StatusInternalServerError)
		}
		n, ok := h.nodes[domain]
		if !ok {
			return c.NoContent(http.StatusNotFound)
		}
		if kind == WriteSet {
			n.Value = string(body)
			h.nodes[domain] = n
		}
		return c.NoContent(http.StatusOK)
	}
}

func (h *Hub) handleEvents(c echo.Context) error {
	sub := &subscriber{
		filter: c.QueryParam("topics"),
		ch:     make(chan protocol.Envelope, subscriberBuffer),
	}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
	}()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.closed:
			return nil
		case env := <-sub.ch:
			if err := sse.Encode(w, sse.Event{Data: env}); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// matchTopics supports comma separated filters with a trailing '*' wildcard
func matchTopics(filter, topic string) bool {
	if filter == "" {
		return true
	}
	for _, f := range strings.Split(filter, ",") {
		f = strings.TrimSpace(f)
		if prefix, ok := strings.CutSuffix(f, "*"); ok {
			if strings.HasPrefix(topic, prefix) {
				return true
			}
			continue
		}
		if f == topic {
			return true
		}
	}
	return false
}
