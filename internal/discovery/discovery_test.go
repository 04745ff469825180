package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/tree"
)

func startTwoHosts(t *testing.T) *busconn.EmbeddedServer {
	t.Helper()
	srv, err := busconn.StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	for _, host := range []string{"h1", "h2"} {
		conn, err := srv.Connect("system.test", host)
		require.NoError(t, err)
		t.Cleanup(conn.Close)

		tr := tree.New(conn)
		_, err = tr.AddNode(context.Background(), nil, "dev", nil)
		require.NoError(t, err)

		d := tree.NewDispatcher(conn, tr)
		require.NoError(t, d.Start(context.Background()))
	}
	time.Sleep(50 * time.Millisecond)
	return srv
}

func TestDiscoverMergesRepliesAcrossHosts(t *testing.T) {
	srv := startTwoHosts(t)
	client, err := srv.Connect("system.explorer", "client")
	require.NoError(t, err)
	t.Cleanup(client.Close)

	node, err := Discover(client, "system", "test", 300*time.Millisecond, nil)
	require.NoError(t, err)

	assert.Contains(t, node.Items(), "h1")
	assert.Contains(t, node.Items(), "h2")
}

func TestDiscoverModulesCollectsEachHostInfo(t *testing.T) {
	srv := startTwoHosts(t)
	client, err := srv.Connect("system.explorer", "client")
	require.NoError(t, err)
	t.Cleanup(client.Close)

	infos, err := DiscoverModules(client, 300*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	hosts := map[string]bool{}
	for _, info := range infos {
		hosts[info.Hostname] = true
	}
	assert.True(t, hosts["h1"])
	assert.True(t, hosts["h2"])
}
