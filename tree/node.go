package tree

import (
	"fmt"

	"zwave-console/protocol"
)

// NodeKind classifies a node for display: branches, and leaves by writability
type NodeKind int

const (
	KindBranch NodeKind = iota
	KindEditable
	KindReadOnly
)

func (k NodeKind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindEditable:
		return "editable"
	case KindReadOnly:
		return "readonly"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

func kindOf(rec protocol.ConfigNode) NodeKind {
	switch {
	case rec.IsBranch():
		return KindBranch
	case rec.ReadOnly:
		return KindReadOnly
	default:
		return KindEditable
	}
}

// Node is a snapshot of one node of the tree
type Node struct {
	protocol.ConfigNode
	Kind     NodeKind
	Loaded   bool // children have been fetched at least once
	Expanded bool
}

// IsLeaf reports whether the node is a leaf
func (n Node) IsLeaf() bool {
	return n.Kind != KindBranch
}

type node struct {
	Node
	parent   *node
	children []*node
	// seq is the sequence number of the request whose response last wrote value/state
	seq uint64
}

func (n *node) snapshot() Node {
	return n.Node
}

func (n *node) isRoot() bool {
	return n.parent == nil
}
