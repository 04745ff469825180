package busconn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := StartEmbeddedServer(0)
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestPublishSubscribeWithPrefixing(t *testing.T) {
	srv := startTestServer(t)
	conn, err := srv.Connect("system.test", "h1")
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	received := make(chan any, 1)
	_, err = conn.Subscribe(context.Background(), "dev.>", func(ctx context.Context, data any, captures []string) (any, error) {
		received <- data
		return nil, nil
	}, true, true)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Publish(context.Background(), "dev.add", map[string]any{"uuid": "x"}, true, true))

	select {
	case got := <-received:
		assert.Equal(t, map[string]any{"uuid": "x"}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSubscribeCapturesWildcard(t *testing.T) {
	srv := startTestServer(t)
	conn, err := srv.Connect("system.test", "h1")
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	captureCh := make(chan []string, 1)
	_, err = conn.Subscribe(context.Background(), "*.dev.>", func(ctx context.Context, data any, captures []string) (any, error) {
		captureCh <- captures
		return nil, nil
	}, true, false)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Publish(context.Background(), "h1.dev.scan.set", nil, true, false))

	select {
	case captures := <-captureCh:
		require.Len(t, captures, 2)
		assert.Equal(t, "h1", captures[0])
		assert.Equal(t, "scan.set", captures[1])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRequestReplyRoundTrip(t *testing.T) {
	srv := startTestServer(t)
	conn, err := srv.Connect("system.test", "h1")
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = conn.Subscribe(context.Background(), "echo", func(ctx context.Context, data any, captures []string) (any, error) {
		return data, nil
	}, true, true)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	reply, err := conn.Request(context.Background(), "echo", "hello", true, true)
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}

func TestHandlerPanicDoesNotKillSubscription(t *testing.T) {
	srv := startTestServer(t)
	conn, err := srv.Connect("system.test", "h1")
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	calls := make(chan string, 2)
	_, err = conn.Subscribe(context.Background(), "go", func(ctx context.Context, data any, captures []string) (any, error) {
		s, _ := data.(string)
		calls <- s
		if s == "boom" {
			panic("handler failure")
		}
		return nil, nil
	}, true, true)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, conn.Publish(context.Background(), "go", "boom", true, true))
	require.NoError(t, conn.Publish(context.Background(), "go", "ok", true, true))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-calls:
			seen[s] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}
	assert.True(t, seen["boom"])
	assert.True(t, seen["ok"])
}
