package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// NodeType is the value type of a configuration node
type NodeType string

const (
	NodeTypeString  NodeType = "STRING"
	NodeTypeInteger NodeType = "INTEGER"
	NodeTypeList    NodeType = "LIST"
)

// NodeState is the health state reported by the hub for a node
type NodeState string

const (
	NodeStateOK           NodeState = "OK"
	NodeStateWarning      NodeState = "WARNING"
	NodeStateError        NodeState = "ERROR"
	NodeStateInitializing NodeState = "INITIALIZING"
)

// Entry is a single key/display pair of a valuelist or actionlist
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EntryList is an ordered list of entries.
// On the wire it is wrapped as {"entry": [...]}; a list with a single element
// may arrive as {"entry": {...}} and is decoded the same way.
type EntryList []Entry

type entryListWire struct {
	Entry json.RawMessage `json:"entry"`
}

// MarshalJSON wraps the list in an "entry" object
func (l EntryList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Entry []Entry `json:"entry"`
	}{Entry: l})
}

// UnmarshalJSON accepts {"entry": [...]}, {"entry": {...}}, a bare array, or null
func (l *EntryList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}

	// 配列がそのまま来た場合
	if data[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
		*l = entries
		return nil
	}

	var wire entryListWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	raw := bytes.TrimSpace(wire.Entry)
	if len(raw) == 0 || string(raw) == "null" {
		*l = EntryList{}
		return nil
	}

	if raw[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return err
		}
		*l = entries
		return nil
	}

	var single Entry
	if err := json.Unmarshal(raw, &single); err != nil {
		return err
	}
	*l = EntryList{single}
	return nil
}

// Lookup returns the display value registered for key
func (l EntryList) Lookup(key string) (string, bool) {
	for _, e := range l {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// ConfigNode is one record of the hub's configuration tree
type ConfigNode struct {
	Domain      string    `json:"domain"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Optional    bool      `json:"optional,omitempty"`
	ReadOnly    bool      `json:"readonly"`
	Type        NodeType  `json:"type,omitempty"`
	Value       string    `json:"value"`
	Minimum     int       `json:"minimum,omitempty"`
	Maximum     int       `json:"maximum,omitempty"`
	State       NodeState `json:"state,omitempty"`
	Description string    `json:"description,omitempty"`
	ValueList   EntryList `json:"valuelist,omitempty"`
	ActionList  EntryList `json:"actionlist,omitempty"`
}

// IsBranch reports whether the node's domain denotes a branch
func (n ConfigNode) IsBranch() bool {
	return IsBranchDomain(n.Domain)
}

// DisplayValue returns the label for LIST values, or the raw value otherwise
func (n ConfigNode) DisplayValue() string {
	if n.Value == "" || n.Type != NodeTypeList {
		return n.Value
	}
	if label, ok := n.ValueList.Lookup(n.Value); ok {
		return label
	}
	return n.Value
}

// HasBounds reports whether minimum/maximum describe a usable range
func (n ConfigNode) HasBounds() bool {
	return n.Maximum > n.Minimum
}

// IsBranchDomain reports whether domain ends with a slash
func IsBranchDomain(domain string) bool {
	return strings.HasSuffix(domain, "/")
}

// RecordsResponse is the body returned by the hub's configuration resource
type RecordsResponse struct {
	Records []ConfigNode `json:"records"`
}
