package permission

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/configstore"
)

func startAuthorizer(t *testing.T, ack bool) (*busconn.EmbeddedServer, *busconn.Conn, chan configstore.Permissions) {
	t.Helper()
	srv, err := busconn.StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	authConn, err := srv.Connect("system.auth", "hub")
	require.NoError(t, err)
	t.Cleanup(authConn.Close)

	seen := make(chan configstore.Permissions, 8)
	_, err = authConn.Subscribe(context.Background(), "system.authorization.hub.system.client.dev.permissions.set",
		func(_ context.Context, data any, _ []string) (any, error) {
			m, _ := data.(map[string]any)
			var perms configstore.Permissions
			if subs, ok := m["subscribe"].([]any); ok {
				for _, s := range subs {
					perms.Subscribe = append(perms.Subscribe, s.(string))
				}
			}
			if pubs, ok := m["publish"].([]any); ok {
				for _, p := range pubs {
					perms.Publish = append(perms.Publish, p.(string))
				}
			}
			seen <- perms
			return ack, nil
		}, false, false)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	clientConn, err := srv.Connect("system.client", "dev")
	require.NoError(t, err)
	t.Cleanup(clientConn.Close)
	return srv, clientConn, seen
}

func TestAskPermissionGrantsAndPersists(t *testing.T) {
	_, clientConn, seen := startAuthorizer(t, true)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "system.client.conf")
	cfg, err := configstore.DefaultConfig("system.client", "dev")
	require.NoError(t, err)

	n := NewNegotiator(clientConn, cfgPath, cfg, "hub")
	ok, err := n.AskPermission(context.Background(), "system.other.>")
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case perms := <-seen:
		assert.Contains(t, perms.Subscribe, "system.other.>")
		assert.Contains(t, perms.Publish, "system.other.>")
	case <-time.After(time.Second):
		t.Fatal("authorization service never saw a request")
	}

	saved, err := configstore.Load(cfgPath)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Contains(t, saved.Client.Permissions.Subscribe, "system.other.>")
}

func TestAskPermissionIdempotentSecondCallSendsNoTraffic(t *testing.T) {
	_, clientConn, seen := startAuthorizer(t, true)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "system.client.conf")
	cfg, err := configstore.DefaultConfig("system.client", "dev")
	require.NoError(t, err)

	n := NewNegotiator(clientConn, cfgPath, cfg, "hub")
	ok, err := n.AskPermission(context.Background(), "system.other.>")
	require.NoError(t, err)
	require.True(t, ok)
	<-seen

	ok, err = n.AskPermission(context.Background(), "system.other.>")
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case <-seen:
		t.Fatal("second idempotent call produced bus traffic")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAskPermissionDeniedReturnsFalse(t *testing.T) {
	_, clientConn, _ := startAuthorizer(t, false)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "system.client.conf")
	cfg, err := configstore.DefaultConfig("system.client", "dev")
	require.NoError(t, err)

	n := NewNegotiator(clientConn, cfgPath, cfg, "hub")
	ok, err := n.AskPermission(context.Background(), "system.other.>")
	require.NoError(t, err)
	assert.False(t, ok)

	_, statErr := os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(statErr))
}
