package hubsim

import "zwave-console/protocol"

// DemoNodes returns a small Z-Wave style tree: a controller and a switch
// with parameters, associations and a node-level action.
func DemoNodes() []protocol.ConfigNode {
	onOff := protocol.EntryList{{Key: "0", Value: "Off"}, {Key: "255", Value: "On"}}
	heal := protocol.EntryList{{Key: "Heal", Value: "Heal Node"}}

	return []protocol.ConfigNode{
		{Domain: "nodes/1/", Name: "node1", Label: "Controller", State: protocol.NodeStateOK, ReadOnly: true},
		{Domain: "nodes/1/info/", Name: "info", Label: "Information", ReadOnly: true},
		{Domain: "nodes/1/info/manufacturer", Name: "manufacturer", Label: "Manufacturer", Type: protocol.NodeTypeString, Value: "Aeon Labs", ReadOnly: true, State: protocol.NodeStateOK},
		{Domain: "nodes/1/info/version", Name: "version", Label: "Version", Type: protocol.NodeTypeString, Value: "3.67", ReadOnly: true, State: protocol.NodeStateOK},
		{Domain: "nodes/5/", Name: "node5", Label: "Wall Switch", State: protocol.NodeStateOK, ActionList: heal},
		{Domain: "nodes/5/status", Name: "status", Label: "Status", Type: protocol.NodeTypeString, Value: "ALIVE", ReadOnly: true, State: protocol.NodeStateOK},
		{Domain: "nodes/5/parameters/", Name: "parameters", Label: "Configuration Parameters"},
		{Domain: "nodes/5/parameters/1", Name: "1", Label: "Ignore start level", Type: protocol.NodeTypeList, Value: "255", ValueList: onOff, State: protocol.NodeStateOK, Description: "Ignore the start level when dimming"},
		{Domain: "nodes/5/parameters/3", Name: "3", Label: "Night light", Type: protocol.NodeTypeList, Value: "0", ValueList: onOff, State: protocol.NodeStateOK},
		{Domain: "nodes/5/parameters/7", Name: "7", Label: "Dim step", Type: protocol.NodeTypeInteger, Value: "1", Minimum: 1, Maximum: 99, State: protocol.NodeStateOK},
		{Domain: "nodes/5/associations/", Name: "associations", Label: "Association Groups"},
		{Domain: "nodes/5/associations/1", Name: "1", Label: "Lifeline", Type: protocol.NodeTypeString, Value: "1", State: protocol.NodeStateInitializing},
	}
}
