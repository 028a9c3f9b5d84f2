package tree

import (
	"fmt"
	"strings"
)

// CollapsePolicy decides what happens to the polling set when a branch collapses
type CollapsePolicy string

const (
	// CollapseKeepPolling leaves the polling set untouched; collapsed branches stay warm.
	CollapseKeepPolling CollapsePolicy = "keep"
	// CollapsePrune drops the collapsed branch and everything below it from the polling set.
	CollapsePrune CollapsePolicy = "prune"
)

// ParseCollapsePolicy parses a policy name; an empty name selects CollapseKeepPolling
func ParseCollapsePolicy(s string) (CollapsePolicy, error) {
	switch CollapsePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollapseKeepPolling:
		return CollapseKeepPolling, nil
	case CollapsePrune:
		return CollapsePrune, nil
	default:
		return "", fmt.Errorf("unknown collapse policy %q (want %q or %q)", s, CollapseKeepPolling, CollapsePrune)
	}
}

// pollingSet lists the leaf descendants of n in pre-order (n itself if it is
// a leaf), then n's own domain when it is a branch, then each ancestor's
// domain up to but excluding the root.
func (s *store) pollingSet(domain string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byDomain[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, domain)
	}

	var set []string
	collectLeaves(n, &set)

	if n.isRoot() {
		return set, nil
	}
	start := n
	if n.IsLeaf() {
		start = n.parent
	}
	for a := start; a != nil && !a.isRoot(); a = a.parent {
		set = append(set, a.Domain)
	}
	return set, nil
}

func collectLeaves(n *node, out *[]string) {
	if n.IsLeaf() {
		*out = append(*out, n.Domain)
		return
	}
	for _, c := range n.children {
		collectLeaves(c, out)
	}
}

// pruneDomains removes every domain at or below prefix
func pruneDomains(set []string, prefix string) []string {
	out := make([]string, 0, len(set))
	for _, d := range set {
		if d == prefix || (strings.HasSuffix(prefix, "/") && strings.HasPrefix(d, prefix)) {
			continue
		}
		out = append(out, d)
	}
	return out
}
