package vbus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/configstore"
	"github.com/vbus-go/vbus/internal/permission"
	"github.com/vbus-go/vbus/internal/tree"
)

// newTestClient wires a Client directly over an embedded NATS server,
// bypassing the full bootstrap chain (mDNS/enrollment), which needs a
// reachable hostname-resolvable bus the test environment doesn't have.
func newTestClient(t *testing.T, srv *busconn.EmbeddedServer, id, hostname string) *Client {
	t.Helper()
	conn, err := srv.Connect(id, hostname)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	cfg, err := configstore.DefaultConfig(id, hostname)
	require.NoError(t, err)
	cfgPath := filepath.Join(t.TempDir(), id+".conf")

	tr := tree.New(conn)
	d := tree.NewDispatcher(conn, tr)
	require.NoError(t, d.Start(context.Background()))

	neg := permission.NewNegotiator(conn, cfgPath, cfg, hostname)
	return &Client{conn: conn, cfg: cfg, cfgPath: cfgPath, tree: tr, dispatcher: d, negotiator: neg}
}

func TestClientAddNodeAndGetAttribute(t *testing.T) {
	srv, err := busconn.StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	client := newTestClient(t, srv, "system.test", "h1")
	time.Sleep(50 * time.Millisecond)

	_, err = client.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)
	_, err = client.AddAttribute(context.Background(), []string{"dev"}, "temp", 21.0, true, nil, nil, nil)
	require.NoError(t, err)

	attr, ok := client.GetAttribute("dev", "temp")
	require.True(t, ok)
	value, hasValue := attr.Value()
	assert.True(t, hasValue)
	assert.Equal(t, 21.0, value)
}

func TestClientExposeCreatesURIAttribute(t *testing.T) {
	srv, err := busconn.StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	client := newTestClient(t, srv, "system.test", "h1")
	client.cfg.Vbus.NetworkIP = "10.0.0.5"

	require.NoError(t, client.Expose(context.Background(), "web", "http", 8080, "api"))

	attr, ok := client.GetAttribute("uris", "web")
	require.True(t, ok)
	value, hasValue := attr.Value()
	assert.True(t, hasValue)
	assert.Equal(t, "http://10.0.0.5:8080/api", value)
}

func TestClientDiscoverMergesAcrossHosts(t *testing.T) {
	srv, err := busconn.StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	a := newTestClient(t, srv, "system.test", "h1")
	_, err = a.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)

	b := newTestClient(t, srv, "system.explorer", "client")
	time.Sleep(50 * time.Millisecond)

	node, err := b.Discover("system", "test", 300*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Contains(t, node.Items(), "h1")
}
