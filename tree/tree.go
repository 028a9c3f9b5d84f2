// Package tree mirrors the hub's configuration tree locally. Branches are
// loaded on demand, and the expanded part of the tree is refreshed by
// polling so that values and states stay current.
package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"zwave-console/notify"
	"zwave-console/protocol"
)

const (
	// DefaultRootDomain is the synthetic root of the configuration tree
	DefaultRootDomain = "nodes/"
	// DefaultConcurrency bounds in-flight refresh requests
	DefaultConcurrency = 4
)

var (
	ErrNotFound      = errors.New("node not found")
	ErrNotBranch     = errors.New("node is not a branch")
	ErrNotLeaf       = errors.New("node is not a leaf")
	ErrReadOnly      = errors.New("node is read-only")
	ErrOutOfRange    = errors.New("value out of range")
	ErrUnknownAction = errors.New("unknown action")
)

// Hub is the subset of the hub REST API the tree needs
type Hub interface {
	Load(ctx context.Context, domain string) ([]protocol.ConfigNode, error)
	SetValue(ctx context.Context, domain, value string) error
	InvokeAction(ctx context.Context, domain, actionKey string) error
}

// Options configures a Tree
type Options struct {
	RootDomain     string
	Concurrency    int64
	CollapsePolicy CollapsePolicy
	Notifier       notify.Notifier
}

// Tree is the local copy of the configuration tree
type Tree struct {
	hub      Hub
	notifier notify.Notifier
	policy   CollapsePolicy
	store    *store
	sem      *semaphore.Weighted
	seq      atomic.Uint64

	pollMu  sync.Mutex
	polling []string
}

// New creates a Tree backed by hub
func New(hub Hub, opts Options) *Tree {
	if opts.RootDomain == "" {
		opts.RootDomain = DefaultRootDomain
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CollapsePolicy == "" {
		opts.CollapsePolicy = CollapseKeepPolling
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}

	return &Tree{
		hub:      hub,
		notifier: opts.Notifier,
		policy:   opts.CollapsePolicy,
		store:    newStore(opts.RootDomain),
		sem:      semaphore.NewWeighted(opts.Concurrency),
	}
}

// RootDomain returns the domain of the synthetic root
func (t *Tree) RootDomain() string {
	return t.store.root.Domain
}

// Policy returns the collapse policy in effect
func (t *Tree) Policy() CollapsePolicy {
	return t.policy
}

// Node returns a snapshot of the node at domain
func (t *Tree) Node(domain string) (Node, bool) {
	return t.store.get(domain)
}

// Children returns snapshots of the loaded children of domain
func (t *Tree) Children(domain string) ([]Node, bool) {
	return t.store.children(domain)
}

// Domains lists every loaded domain in pre-order
func (t *Tree) Domains() []string {
	var out []string
	t.store.walk(func(n Node) {
		out = append(out, n.Domain)
	})
	return out
}

// LoadBranch fetches the children of a branch and replaces the ones held locally.
// Read failures are logged and returned; they are never shown as notifications.
func (t *Tree) LoadBranch(ctx context.Context, domain string) ([]Node, error) {
	n, ok := t.store.get(domain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, domain)
	}
	if n.IsLeaf() {
		return nil, fmt.Errorf("%w: %s", ErrNotBranch, domain)
	}

	seq := t.seq.Add(1)
	requestDomain := domain
	if domain == t.RootDomain() {
		requestDomain = ""
	}

	records, err := t.hub.Load(ctx, requestDomain)
	if err != nil {
		slog.Warn("Failed to load branch", "domain", domain, "err", err)
		return nil, fmt.Errorf("load %s: %w", domain, err)
	}

	children, err := t.store.replaceChildren(domain, records, seq)
	if err != nil {
		return nil, err
	}
	slog.Debug("Branch loaded", "domain", domain, "children", len(children))
	return children, nil
}

// Reload reloads the tree from the top level
func (t *Tree) Reload(ctx context.Context) ([]Node, error) {
	return t.LoadBranch(ctx, t.RootDomain())
}

// SetValue sends a new value for a leaf to the hub.
// Nothing is sent for read-only nodes or unchanged values. The local value is
// not touched; the next refresh brings the hub's view back.
func (t *Tree) SetValue(ctx context.Context, domain, value string) error {
	n, ok := t.store.get(domain)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, domain)
	}
	if !n.IsLeaf() {
		return fmt.Errorf("%w: %s", ErrNotLeaf, domain)
	}
	if n.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, domain)
	}
	if n.Value == value {
		return nil
	}

	if n.Type == protocol.NodeTypeInteger && n.HasBounds() {
		v, err := strconv.Atoi(value)
		if err != nil || v < n.Minimum || v > n.Maximum {
			t.notifier.Notify(notify.Warning, fmt.Sprintf(
				"Value is out of specified range. Please limit the value to between %d and %d.", n.Minimum, n.Maximum))
			return fmt.Errorf("%w: %q not in [%d, %d]", ErrOutOfRange, value, n.Minimum, n.Maximum)
		}
	}

	if err := t.hub.SetValue(ctx, domain, value); err != nil {
		slog.Warn("Failed to send value", "domain", domain, "err", err)
		t.notifier.Notify(notify.Warning, fmt.Sprintf("Error sending updated value for %s to the server!", domain))
		return fmt.Errorf("set %s: %w", domain, err)
	}
	return nil
}

// InvokeAction asks the hub to run an action on a node.
// An empty key selects the node's first action.
func (t *Tree) InvokeAction(ctx context.Context, domain, actionKey string) error {
	n, ok := t.store.get(domain)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, domain)
	}
	if actionKey == "" {
		if len(n.ActionList) == 0 {
			return fmt.Errorf("%w: %s has no actions", ErrUnknownAction, domain)
		}
		actionKey = n.ActionList[0].Key
	} else if len(n.ActionList) > 0 {
		if _, ok := n.ActionList.Lookup(actionKey); !ok {
			return fmt.Errorf("%w: %q on %s", ErrUnknownAction, actionKey, domain)
		}
	}

	if err := t.hub.InvokeAction(ctx, domain, actionKey); err != nil {
		slog.Warn("Failed to send action", "domain", domain, "action", actionKey, "err", err)
		t.notifier.Notify(notify.Error, fmt.Sprintf("Error sending action %s for %s to the server!", actionKey, domain))
		return fmt.Errorf("action %s on %s: %w", actionKey, domain, err)
	}
	return nil
}

// OnExpand marks a branch expanded and rebuilds the polling set from it.
// A leaf is not marked, but the set is rebuilt from it and its ancestors.
func (t *Tree) OnExpand(domain string) ([]string, error) {
	if err := t.store.setExpanded(domain, true); err != nil && !errors.Is(err, ErrNotBranch) {
		return nil, err
	}
	set, err := t.store.pollingSet(domain)
	if err != nil {
		return nil, err
	}

	t.pollMu.Lock()
	t.polling = set
	t.pollMu.Unlock()

	out := make([]string, len(set))
	copy(out, set)
	return out, nil
}

// OnCollapse marks a branch collapsed and applies the collapse policy
func (t *Tree) OnCollapse(domain string) error {
	if err := t.store.setExpanded(domain, false); err != nil {
		return err
	}
	if t.policy != CollapsePrune {
		return nil
	}

	t.pollMu.Lock()
	t.polling = pruneDomains(t.polling, domain)
	t.pollMu.Unlock()
	return nil
}

// PollingSet returns the domains refreshed on each tick
func (t *Tree) PollingSet() []string {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	out := make([]string, len(t.polling))
	copy(out, t.polling)
	return out
}

// RefreshTick reads every domain of the polling set and patches value and
// state of the matching nodes. Requests run concurrently, bounded by the
// tree's concurrency limit, and the call returns once all of them finished.
// A response is applied only if no newer response already touched the node.
func (t *Tree) RefreshTick(ctx context.Context) {
	domains := t.PollingSet()
	if len(domains) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, domain := range domains {
		seq := t.seq.Add(1)
		if err := t.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(domain string, seq uint64) {
			defer wg.Done()
			defer t.sem.Release(1)
			t.refreshDomain(ctx, domain, seq)
		}(domain, seq)
	}
	wg.Wait()
}

func (t *Tree) refreshDomain(ctx context.Context, domain string, seq uint64) {
	records, err := t.hub.Load(ctx, domain)
	if err != nil {
		if ctx.Err() == nil {
			slog.Debug("Refresh failed", "domain", domain, "err", err)
		}
		return
	}
	t.applyRecords(records, seq)
}

func (t *Tree) applyRecords(records []protocol.ConfigNode, seq uint64) int {
	applied := 0
	for _, rec := range records {
		if t.store.apply(rec, seq) {
			applied++
		}
	}
	return applied
}
