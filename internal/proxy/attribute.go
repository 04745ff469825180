package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/wireutil"
)

// AttributeProxy is a client-side view over a remote attribute.
type AttributeProxy struct {
	base
}

// Set publishes the new value to <path>.set. Publish is fire-and-forget;
// a schema mismatch on the remote side surfaces only in its logs, per
// spec.md §7 (validation errors never reach the bus).
func (a *AttributeProxy) Set(ctx context.Context, value any) error {
	path := wireutil.JoinPath(append(append([]string{}, a.parts...), "set")...)
	return a.conn.Publish(ctx, path, value, false, false)
}

// GetValue issues <path>.value.get. inCache asks the remote module to
// answer from its cached value without invoking on_get.
func (a *AttributeProxy) GetValue(ctx context.Context, inCache bool, timeout time.Duration) (any, error) {
	path := wireutil.JoinPath(append(append([]string{}, a.parts...), "value", "get")...)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reply, err := a.conn.Request(ctx, path, map[string]any{"in_cache": inCache}, false, false)
	if err != nil {
		return nil, fmt.Errorf("proxy: get_value %s: %w", path, err)
	}
	if shapeOf(reply) == "error" {
		m, _ := reply.(map[string]any)
		return nil, remoteError(m)
	}
	return reply, nil
}

// SubscribeSet installs cb on <path>.value.set.
func (a *AttributeProxy) SubscribeSet(ctx context.Context, cb func(value any)) (string, error) {
	path := wireutil.JoinPath(append(append([]string{}, a.parts...), "value", "set")...)
	handler := func(_ context.Context, data any, _ []string) (any, error) {
		cb(data)
		return nil, nil
	}
	return a.conn.Subscribe(ctx, path, busconn.Handler(handler), false, false)
}

// Unsubscribe drops a subscription created by SubscribeSet.
func (a *AttributeProxy) Unsubscribe(sid string) error { return a.conn.Unsubscribe(sid) }

// WildcardAttrProxy is a subscribe-only view over a path containing a
// wildcard segment. Per spec.md §4.4, get/set are not offered: a
// single wildcard path addresses many concrete attributes at once.
type WildcardAttrProxy struct {
	base
}

// NewWildcardAttr wraps a wildcard-bearing dotted path for subscription.
func NewWildcardAttr(conn Requester, parts []string) *WildcardAttrProxy {
	return &WildcardAttrProxy{base{conn: conn, parts: parts}}
}

// SubscribeSet installs cb on <path>.value.set.
func (w *WildcardAttrProxy) SubscribeSet(ctx context.Context, cb func(captures []string, value any)) (string, error) {
	path := wireutil.JoinPath(append(append([]string{}, w.parts...), "value", "set")...)
	handler := func(_ context.Context, data any, captures []string) (any, error) {
		cb(captures, data)
		return nil, nil
	}
	return w.conn.Subscribe(ctx, path, busconn.Handler(handler), false, false)
}

// Unsubscribe drops a subscription created by SubscribeSet.
func (w *WildcardAttrProxy) Unsubscribe(sid string) error { return w.conn.Unsubscribe(sid) }
