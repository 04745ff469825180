package tree

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/element"
)

func startDispatcher(t *testing.T) (*busconn.Conn, *Tree) {
	t.Helper()
	srv, err := busconn.StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	conn, err := srv.Connect("system.test", "h1")
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	tr := New(conn)
	_, err = tr.AddNode(context.Background(), nil, "dev", nil)
	require.NoError(t, err)
	_, err = tr.AddAttribute(context.Background(), []string{"dev"}, "temp", 21.0, true, nil, nil, nil)
	require.NoError(t, err)

	d := NewDispatcher(conn, tr)
	require.NoError(t, d.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	return conn, tr
}

func TestDispatcherDescribeRespondsWithHostnameKeyedTree(t *testing.T) {
	conn, _ := startDispatcher(t)

	reply, err := conn.Request(context.Background(), "", nil, true, false)
	require.NoError(t, err)

	m, ok := reply.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m, "h1")
}

func TestDispatcherGetValueRoundTrip(t *testing.T) {
	conn, _ := startDispatcher(t)

	reply, err := conn.Request(context.Background(), "dev.temp.value.get", nil, true, true)
	require.NoError(t, err)
	assert.Equal(t, 21.0, reply)
}

func TestDispatcherSetValueRoundTrip(t *testing.T) {
	conn, tr := startDispatcher(t)

	_, err := conn.Request(context.Background(), "dev.temp.value.set", 30.0, true, true)
	require.NoError(t, err)

	attr, ok := tr.GetAttribute("dev", "temp")
	require.True(t, ok)
	value, hasValue := attr.Value()
	assert.True(t, hasValue)
	assert.Equal(t, 30.0, value)
}

func TestDispatcherUnknownPathReturnsNotFound(t *testing.T) {
	conn, _ := startDispatcher(t)

	reply, err := conn.Request(context.Background(), "dev.missing.value.get", nil, true, true)
	require.NoError(t, err)

	errEl, ok := reply.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(element.NotFound().Code), errEl["code"])
}

func TestDispatcherInfoRespondsWithModuleDescription(t *testing.T) {
	conn, _ := startDispatcher(t)

	reply, err := conn.Request(context.Background(), "info", nil, false, false)
	require.NoError(t, err)

	m, ok := reply.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "system.test", m["id"])
	assert.Equal(t, "h1", m["hostname"])
}
