package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/wireutil"
)

// MethodProxy is a client-side view over a remote method.
type MethodProxy struct {
	base
}

// Call issues a request on <path>.set with args packed as a JSON array,
// per spec.md §4.4: "the positional args packed as an array".
func (m *MethodProxy) Call(ctx context.Context, timeout time.Duration, args ...any) (any, error) {
	path := wireutil.JoinPath(append(append([]string{}, m.parts...), "set")...)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := args
	if payload == nil {
		payload = []any{}
	}
	reply, err := m.conn.Request(ctx, path, payload, false, false)
	if err != nil {
		return nil, fmt.Errorf("proxy: call %s: %w", path, err)
	}
	if shapeOf(reply) == "error" {
		rm, _ := reply.(map[string]any)
		return nil, remoteError(rm)
	}
	return reply, nil
}

// WildcardNodeProxy is a subscribe-only view over a node path
// containing a wildcard segment.
type WildcardNodeProxy struct {
	base
}

// NewWildcardNode wraps a wildcard-bearing dotted path for subscription.
func NewWildcardNode(conn Requester, parts []string) *WildcardNodeProxy {
	return &WildcardNodeProxy{base{conn: conn, parts: parts}}
}

// SubscribeAdd installs cb on <path>.add.
func (w *WildcardNodeProxy) SubscribeAdd(ctx context.Context, cb func(captures []string, uuid string, child any)) (string, error) {
	return w.subscribe(ctx, "add", cb)
}

// SubscribeDel installs cb on <path>.del.
func (w *WildcardNodeProxy) SubscribeDel(ctx context.Context, cb func(captures []string, uuid string, child any)) (string, error) {
	return w.subscribe(ctx, "del", cb)
}

func (w *WildcardNodeProxy) subscribe(ctx context.Context, op string, cb func([]string, string, any)) (string, error) {
	path := wireutil.JoinPath(append(append([]string{}, w.parts...), op)...)
	handler := func(_ context.Context, data any, captures []string) (any, error) {
		m, ok := data.(map[string]any)
		if !ok {
			return nil, nil
		}
		for uuid, rendered := range m {
			cb(captures, uuid, rendered)
		}
		return nil, nil
	}
	return w.conn.Subscribe(ctx, path, busconn.Handler(handler), false, false)
}

// Unsubscribe drops a subscription created by SubscribeAdd/SubscribeDel.
func (w *WildcardNodeProxy) Unsubscribe(sid string) error { return w.conn.Unsubscribe(sid) }
