package tree

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"zwave-console/protocol"
)

// store holds the node hierarchy keyed by domain
type store struct {
	mu       sync.RWMutex
	root     *node
	byDomain map[string]*node
}

func newStore(rootDomain string) *store {
	root := &node{Node: Node{
		ConfigNode: protocol.ConfigNode{Domain: rootDomain, Name: strings.TrimSuffix(rootDomain, "/"), Label: strings.TrimSuffix(rootDomain, "/")},
		Kind:       KindBranch,
		Expanded:   true,
	}}
	return &store{
		root:     root,
		byDomain: map[string]*node{rootDomain: root},
	}
}

func (s *store) get(domain string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byDomain[domain]
	if !ok {
		return Node{}, false
	}
	return n.snapshot(), true
}

func (s *store) children(domain string) ([]Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byDomain[domain]
	if !ok {
		return nil, false
	}
	out := make([]Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c.snapshot())
	}
	return out, true
}

// replaceChildren drops the current subtree below parent and installs records
// as its new children. Records outside the parent's domain are skipped.
func (s *store) replaceChildren(parent string, records []protocol.ConfigNode, seq uint64) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byDomain[parent]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, parent)
	}
	if p.IsLeaf() {
		return nil, fmt.Errorf("%w: %s", ErrNotBranch, parent)
	}

	for _, c := range p.children {
		s.forgetLocked(c)
	}
	p.children = nil

	out := make([]Node, 0, len(records))
	for _, rec := range records {
		if rec.Domain == "" || rec.Domain == parent || !strings.HasPrefix(rec.Domain, parent) {
			slog.Warn("skipping record outside branch", "branch", parent, "domain", rec.Domain)
			continue
		}
		if _, exists := s.byDomain[rec.Domain]; exists {
			slog.Warn("skipping duplicate domain", "branch", parent, "domain", rec.Domain)
			continue
		}

		child := &node{
			Node:   Node{ConfigNode: rec, Kind: kindOf(rec)},
			parent: p,
			seq:    seq,
		}
		p.children = append(p.children, child)
		s.byDomain[rec.Domain] = child
		out = append(out, child.snapshot())
	}
	p.Loaded = true
	return out, nil
}

func (s *store) forgetLocked(n *node) {
	for _, c := range n.children {
		s.forgetLocked(c)
	}
	delete(s.byDomain, n.Domain)
}

// apply copies value and state from rec onto the node with the same domain.
// Responses older than the last applied one for that node are ignored.
func (s *store) apply(rec protocol.ConfigNode, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byDomain[rec.Domain]
	if !ok || n.isRoot() {
		return false
	}
	if seq <= n.seq {
		return false
	}
	n.seq = seq
	n.Value = rec.Value
	n.State = rec.State
	return true
}

func (s *store) setExpanded(domain string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byDomain[domain]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, domain)
	}
	if n.IsLeaf() {
		return fmt.Errorf("%w: %s", ErrNotBranch, domain)
	}
	n.Expanded = expanded
	return nil
}

// walk visits every loaded node below the root in pre-order
func (s *store) walk(fn func(Node)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var visit func(n *node)
	visit = func(n *node) {
		for _, c := range n.children {
			fn(c.snapshot())
			visit(c)
		}
	}
	visit(s.root)
}
