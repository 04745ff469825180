package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/tree"
)

func startModuleA(t *testing.T) (*busconn.EmbeddedServer, *busconn.Conn, *tree.Tree) {
	t.Helper()
	srv, err := busconn.StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	connA, err := srv.Connect("system.test", "h1")
	require.NoError(t, err)
	t.Cleanup(connA.Close)

	tr := tree.New(connA)
	ctx := context.Background()
	_, err = tr.AddNode(ctx, nil, "dev", nil)
	require.NoError(t, err)
	_, err = tr.AddAttribute(ctx, []string{"dev"}, "temp", 21.0, true, nil, nil, nil)
	require.NoError(t, err)
	_, err = tr.AddMethod(ctx, []string{"dev"}, "scan", func(_ context.Context, seconds int) error { return nil })
	require.NoError(t, err)

	d := tree.NewDispatcher(connA, tr)
	require.NoError(t, d.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	return srv, connA, tr
}

func newNodeProxy(t *testing.T, srv *busconn.EmbeddedServer) *NodeProxy {
	t.Helper()
	connB, err := srv.Connect("system.test2", "h2")
	require.NoError(t, err)
	t.Cleanup(connB.Close)
	return &NodeProxy{base{conn: connB, parts: []string{"system.test", "h1"}}}
}

func TestNodeProxyGetAttributeFallsBackToRemoteFetch(t *testing.T) {
	srv, _, _ := startModuleA(t)
	root := newNodeProxy(t, srv)

	attr, err := root.GetAttribute(context.Background(), time.Second, "dev", "temp")
	require.NoError(t, err)

	value, err := attr.GetValue(context.Background(), false, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 21.0, value)
}

func TestAttributeProxySetPublishesAndUpdatesRemote(t *testing.T) {
	srv, _, tr := startModuleA(t)
	root := newNodeProxy(t, srv)

	attr, err := root.GetAttribute(context.Background(), time.Second, "dev", "temp")
	require.NoError(t, err)

	require.NoError(t, attr.Set(context.Background(), 30.0))
	time.Sleep(100 * time.Millisecond)

	remote, ok := tr.GetAttribute("dev", "temp")
	require.True(t, ok)
	value, hasValue := remote.Value()
	assert.True(t, hasValue)
	assert.Equal(t, 30.0, value)
}

func TestMethodProxyCallInvokesRemoteFunction(t *testing.T) {
	srv, _, _ := startModuleA(t)
	root := newNodeProxy(t, srv)

	method, err := root.GetMethod(context.Background(), time.Second, "dev", "scan")
	require.NoError(t, err)

	reply, err := method.Call(context.Background(), time.Second, 60)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestNodeProxyGetNodeNotFoundReturnsRemoteError(t *testing.T) {
	srv, _, _ := startModuleA(t)
	root := newNodeProxy(t, srv)

	_, err := root.GetNode(context.Background(), time.Second, "dev", "absent")
	require.Error(t, err)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, 404, remoteErr.Code)
}

func TestNodeProxySubscribeAddReceivesNewChild(t *testing.T) {
	srv, connA, tr := startModuleA(t)
	root := newNodeProxy(t, srv)

	received := make(chan string, 1)
	_, err := root.SubscribeAdd(context.Background(), func(uuid string, _ *NodeProxy) {
		received <- uuid
	})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	_, err = tr.AddNode(context.Background(), nil, "new", nil)
	require.NoError(t, err)
	_ = connA

	select {
	case uuid := <-received:
		assert.Equal(t, "new", uuid)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for add notification")
	}
}
