package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zwave-console/hubsim"
	"zwave-console/protocol"
)

func newTestClient(t *testing.T) (*Client, *hubsim.Hub) {
	t.Helper()
	sim := hubsim.New(hubsim.DemoNodes()...)
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(func() {
		sim.Close()
		srv.Close()
	})

	c, err := NewClient(srv.URL+"/rest/", 5*time.Second)
	require.NoError(t, err)
	return c, sim
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://hub/rest", 0)
	assert.Error(t, err)
	_, err = NewClient("://bad", 0)
	assert.Error(t, err)
}

func TestLoadTopLevelAndBranch(t *testing.T) {
	c, sim := newTestClient(t)
	ctx := context.Background()

	top, err := c.Load(ctx, "")
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "nodes/1/", top[0].Domain)
	assert.Equal(t, "nodes/5/", top[1].Domain)

	children, err := c.Load(ctx, "nodes/5/")
	require.NoError(t, err)
	domains := make([]string, 0, len(children))
	for _, n := range children {
		domains = append(domains, n.Domain)
	}
	assert.Equal(t, []string{"nodes/5/status", "nodes/5/parameters/", "nodes/5/associations/"}, domains)

	leaf, err := c.Load(ctx, "nodes/5/parameters/1")
	require.NoError(t, err)
	require.Len(t, leaf, 1)
	assert.Equal(t, protocol.NodeTypeList, leaf[0].Type)
	assert.Equal(t, "On", leaf[0].DisplayValue())

	assert.Equal(t, 1, sim.GetCount("nodes/5/"))
}

func TestSetValueAndAction(t *testing.T) {
	c, sim := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetValue(ctx, "nodes/5/parameters/7", "10"))
	require.NoError(t, c.InvokeAction(ctx, "nodes/5/", "Heal"))

	assert.Equal(t, []hubsim.Write{
		{Kind: hubsim.WriteSet, Domain: "nodes/5/parameters/7", Body: "10"},
		{Kind: hubsim.WriteAction, Domain: "nodes/5/", Body: "Heal"},
	}, sim.Writes())
}

func TestStatusError(t *testing.T) {
	c, sim := newTestClient(t)
	sim.SetFailWrites(true)

	err := c.SetValue(context.Background(), "nodes/5/parameters/7", "10")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, http.MethodPut, statusErr.Method)
}

func TestAcceptHeader(t *testing.T) {
	var accept, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)
	require.NoError(t, c.InvokeAction(context.Background(), "nodes/5/", "Heal"))
	assert.Equal(t, "application/json", accept)
	assert.Equal(t, "application/json", contentType)

	records, err := c.Load(context.Background(), "nodes/5/")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEventsURL(t *testing.T) {
	c, err := NewClient("http://hub:8080/rest", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://hub:8080/rest/events?topics=smarthome%2F%2A", c.EventsURL("smarthome/*"))
}
