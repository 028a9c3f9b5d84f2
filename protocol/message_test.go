package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEntryListUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  EntryList
	}{
		{
			name:  "Array",
			input: `{"entry":[{"key":"0","value":"Off"},{"key":"255","value":"On"}]}`,
			want:  EntryList{{Key: "0", Value: "Off"}, {Key: "255", Value: "On"}},
		},
		{
			name:  "SingleObject",
			input: `{"entry":{"key":"Heal","value":"Heal Node"}}`,
			want:  EntryList{{Key: "Heal", Value: "Heal Node"}},
		},
		{
			name:  "BareArray",
			input: `[{"key":"1","value":"One"}]`,
			want:  EntryList{{Key: "1", Value: "One"}},
		},
		{
			name:  "EmptyEntry",
			input: `{}`,
			want:  EntryList{},
		},
		{
			name:  "Null",
			input: `null`,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got EntryList
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Failed to unmarshal EntryList: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("UnmarshalJSON() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEntryListMarshalWrapsEntries(t *testing.T) {
	data, err := json.Marshal(EntryList{{Key: "a", Value: "A"}})
	if err != nil {
		t.Fatalf("Failed to marshal EntryList: %v", err)
	}
	want := `{"entry":[{"key":"a","value":"A"}]}`
	if string(data) != want {
		t.Errorf("MarshalJSON() = %s, want %s", data, want)
	}
}

func TestConfigNodeDecode(t *testing.T) {
	body := `{"records":[
		{"domain":"nodes/5/","name":"node5","label":"Node 5","readonly":false,"state":"OK"},
		{"domain":"nodes/5/parameters/1","name":"p1","label":"Param 1","readonly":false,"type":"LIST","value":"255",
		 "minimum":0,"maximum":255,"state":"WARNING","description":"Switch mode",
		 "valuelist":{"entry":[{"key":"0","value":"Off"},{"key":"255","value":"On"}]},
		 "actionlist":{"entry":{"key":"Refresh","value":"Refresh"}}}
	]}`

	var resp RecordsResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Failed to unmarshal records: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(resp.Records))
	}

	branch, leaf := resp.Records[0], resp.Records[1]
	if !branch.IsBranch() {
		t.Errorf("%s should be a branch", branch.Domain)
	}
	if leaf.IsBranch() {
		t.Errorf("%s should be a leaf", leaf.Domain)
	}
	if leaf.State != NodeStateWarning {
		t.Errorf("State = %v, want %v", leaf.State, NodeStateWarning)
	}
	if leaf.DisplayValue() != "On" {
		t.Errorf("DisplayValue() = %q, want %q", leaf.DisplayValue(), "On")
	}
	if diff := cmp.Diff(EntryList{{Key: "Refresh", Value: "Refresh"}}, leaf.ActionList); diff != "" {
		t.Errorf("ActionList mismatch (-want +got):\n%s", diff)
	}
}

func TestDisplayValue(t *testing.T) {
	list := EntryList{{Key: "1", Value: "Enabled"}}
	tests := []struct {
		name string
		node ConfigNode
		want string
	}{
		{"ListKnownKey", ConfigNode{Type: NodeTypeList, Value: "1", ValueList: list}, "Enabled"},
		{"ListUnknownKey", ConfigNode{Type: NodeTypeList, Value: "7", ValueList: list}, "7"},
		{"ListWithoutValues", ConfigNode{Type: NodeTypeList, Value: "1"}, "1"},
		{"Integer", ConfigNode{Type: NodeTypeInteger, Value: "1", ValueList: list}, "1"},
		{"Empty", ConfigNode{Type: NodeTypeList, Value: "", ValueList: list}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.DisplayValue(); got != tt.want {
				t.Errorf("DisplayValue() = %q, want %q", got, tt.want)
			}
		})
	}
}
