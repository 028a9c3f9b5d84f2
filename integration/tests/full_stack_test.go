//go:build integration

package tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zwave-console/events"
	"zwave-console/hubsim"
	"zwave-console/integration/helpers"
	"zwave-console/notify"
	"zwave-console/protocol"
	"zwave-console/relay"
)

func startStack(t *testing.T) *helpers.TestStack {
	t.Helper()
	stack, err := helpers.NewTestStack()
	require.NoError(t, err, "テストスタックの作成")
	require.NoError(t, stack.Start(), "テストスタックの起動")
	t.Cleanup(func() {
		assert.NoError(t, stack.Stop())
	})
	return stack
}

func TestFullStackPollingFollowsHub(t *testing.T) {
	stack := startStack(t)
	ctx := stack.Context()

	_, err := stack.Tree.LoadBranch(ctx, "nodes/5/")
	require.NoError(t, err)
	children, err := stack.Tree.LoadBranch(ctx, "nodes/5/parameters/")
	require.NoError(t, err)
	require.Len(t, children, 3)

	set, err := stack.Tree.OnExpand("nodes/5/parameters/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"nodes/5/parameters/1",
		"nodes/5/parameters/3",
		"nodes/5/parameters/7",
		"nodes/5/parameters/",
		"nodes/5/",
	}, set)

	require.NoError(t, stack.Poller.Show(ctx))

	// ハブ側の値の変化がポーリングで反映される
	require.True(t, stack.Hub.UpdateValue("nodes/5/parameters/7", "42", protocol.NodeStateWarning))
	assert.Eventually(t, func() bool {
		n, ok := stack.Tree.Node("nodes/5/parameters/7")
		return ok && n.Value == "42" && n.State == protocol.NodeStateWarning
	}, 5*time.Second, 20*time.Millisecond)

	// 表示を隠すと更新が止まる
	stack.Poller.Hide()
	time.Sleep(50 * time.Millisecond)
	count := stack.Hub.GetCount("nodes/5/parameters/7")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, count, stack.Hub.GetCount("nodes/5/parameters/7"))
}

func TestFullStackWrites(t *testing.T) {
	stack := startStack(t)
	ctx := stack.Context()

	_, err := stack.Tree.LoadBranch(ctx, "nodes/5/")
	require.NoError(t, err)
	_, err = stack.Tree.LoadBranch(ctx, "nodes/5/parameters/")
	require.NoError(t, err)

	require.NoError(t, stack.Tree.SetValue(ctx, "nodes/5/parameters/7", "10"))
	require.NoError(t, stack.Tree.InvokeAction(ctx, "nodes/5/", ""))
	assert.Equal(t, []hubsim.Write{
		{Kind: hubsim.WriteSet, Domain: "nodes/5/parameters/7", Body: "10"},
		{Kind: hubsim.WriteAction, Domain: "nodes/5/", Body: "Heal"},
	}, stack.Hub.Writes())

	// 書き込み失敗は通知される
	stack.Hub.SetFailWrites(true)
	assert.Error(t, stack.Tree.SetValue(ctx, "nodes/5/parameters/7", "11"))
	notices := stack.Notices.Notifications()
	require.NotEmpty(t, notices)
	assert.Equal(t, notify.Warning, notices[len(notices)-1].Severity)
}

func TestFullStackEventsReachRelay(t *testing.T) {
	stack := startStack(t)

	conn, err := helpers.NewRelayConnection(stack.GetRelayURL())
	require.NoError(t, err, "リレーへの接続")
	defer conn.Close()

	require.Eventually(t, func() bool { return stack.Relay.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return stack.Listener.State() == events.StateConnected && stack.Hub.Subscribers() == 1
	}, 5*time.Second, 10*time.Millisecond)

	n, err := stack.Hub.Publish(protocol.EventTypeItemState, "smarthome/items/Switch5/state",
		protocol.ItemStatePayload{Type: "OnOff", Value: "ON"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	msg, err := conn.WaitForMessage(func(m *relay.Message) bool {
		return m.Type == protocol.EventTypeItemState
	}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "smarthome/items/Switch5/state", msg.Topic)
	assert.Equal(t, map[string]interface{}{"type": "OnOff", "value": "ON"}, msg.Payload)
}
