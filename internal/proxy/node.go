package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/wireutil"
)

// NodeProxy is a client-side view over a remote container. Its cached
// field holds the last-known subtree (from a describe, discover, or
// earlier get); children are only refreshed on demand.
type NodeProxy struct {
	base
}

// NewNode wraps a remote dotted path (its segments, already
// id/host-qualified) as a NodeProxy, for a caller that addresses a
// known module directly rather than discovering it first.
func NewNode(conn Requester, parts []string, cached any) *NodeProxy {
	return &NodeProxy{base{conn: conn, parts: parts, cached: cached}}
}

func (n *NodeProxy) children() map[string]any {
	m, _ := n.cached.(map[string]any)
	return m
}

// Items returns the raw cached child map, keyed by uuid.
func (n *NodeProxy) Items() map[string]any { return n.children() }

// Attributes returns the cached children shaped as attributes.
func (n *NodeProxy) Attributes() map[string]*AttributeProxy {
	out := map[string]*AttributeProxy{}
	for uuid, child := range n.children() {
		if shapeOf(child) == "attribute" {
			out[uuid] = &AttributeProxy{base{conn: n.conn, parts: n.child(uuid), cached: child}}
		}
	}
	return out
}

// Methods returns the cached children shaped as methods.
func (n *NodeProxy) Methods() map[string]*MethodProxy {
	out := map[string]*MethodProxy{}
	for uuid, child := range n.children() {
		if shapeOf(child) == "method" {
			out[uuid] = &MethodProxy{base{conn: n.conn, parts: n.child(uuid), cached: child}}
		}
	}
	return out
}

// Nodes returns the cached children shaped as nodes.
func (n *NodeProxy) Nodes() map[string]*NodeProxy {
	out := map[string]*NodeProxy{}
	for uuid, child := range n.children() {
		if shapeOf(child) == "node" {
			out[uuid] = &NodeProxy{base{conn: n.conn, parts: n.child(uuid), cached: child}}
		}
	}
	return out
}

// GetAttribute consults the cached subtree first; on a miss it issues
// a synchronous get on the dotted path (no local id/hostname prefix,
// since parts is already a fully-qualified remote path).
func (n *NodeProxy) GetAttribute(ctx context.Context, timeout time.Duration, parts ...string) (*AttributeProxy, error) {
	if cached := wireutil.GetPathInDict(n.children(), parts...); cached != nil {
		if shapeOf(cached) == "attribute" {
			return &AttributeProxy{base{conn: n.conn, parts: n.child(parts...), cached: cached}}, nil
		}
	}
	remote, err := n.fetch(ctx, timeout, parts)
	if err != nil {
		return nil, err
	}
	if shapeOf(remote) != "attribute" {
		return nil, fmt.Errorf("proxy: %s is not an attribute", wireutil.JoinPath(n.child(parts...)...))
	}
	return &AttributeProxy{base{conn: n.conn, parts: n.child(parts...), cached: remote}}, nil
}

// GetMethod consults the cache, falling back to a synchronous get.
func (n *NodeProxy) GetMethod(ctx context.Context, timeout time.Duration, parts ...string) (*MethodProxy, error) {
	if isWildcardPath(parts) {
		return nil, ErrWildcardForbidden
	}
	if cached := wireutil.GetPathInDict(n.children(), parts...); cached != nil {
		if shapeOf(cached) == "method" {
			return &MethodProxy{base{conn: n.conn, parts: n.child(parts...), cached: cached}}, nil
		}
	}
	remote, err := n.fetch(ctx, timeout, parts)
	if err != nil {
		return nil, err
	}
	if shapeOf(remote) != "method" {
		return nil, fmt.Errorf("proxy: %s is not a method", wireutil.JoinPath(n.child(parts...)...))
	}
	return &MethodProxy{base{conn: n.conn, parts: n.child(parts...), cached: remote}}, nil
}

// GetNode consults the cache, falling back to a synchronous get.
func (n *NodeProxy) GetNode(ctx context.Context, timeout time.Duration, parts ...string) (*NodeProxy, error) {
	if isWildcardPath(parts) {
		return nil, ErrWildcardForbidden
	}
	if cached := wireutil.GetPathInDict(n.children(), parts...); cached != nil {
		if shapeOf(cached) == "node" {
			return &NodeProxy{base{conn: n.conn, parts: n.child(parts...), cached: cached}}, nil
		}
	}
	remote, err := n.fetch(ctx, timeout, parts)
	if err != nil {
		return nil, err
	}
	if shapeOf(remote) != "node" {
		return nil, fmt.Errorf("proxy: %s is not a node", wireutil.JoinPath(n.child(parts...)...))
	}
	return &NodeProxy{base{conn: n.conn, parts: n.child(parts...), cached: remote}}, nil
}

func (n *NodeProxy) fetch(ctx context.Context, timeout time.Duration, parts []string) (any, error) {
	path := wireutil.JoinPath(append(append([]string{}, n.child(parts...)...), "get")...)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reply, err := n.conn.Request(ctx, path, nil, false, false)
	if err != nil {
		return nil, fmt.Errorf("proxy: get %s: %w", path, err)
	}
	if shapeOf(reply) == "error" {
		m, _ := reply.(map[string]any)
		return nil, remoteError(m)
	}
	return reply, nil
}

// SubscribeAdd installs cb on <path>.add; payloads are decoded and
// each {uuid: rendered} entry delivered as a NodeProxy at the child
// path.
func (n *NodeProxy) SubscribeAdd(ctx context.Context, cb func(uuid string, child *NodeProxy)) (string, error) {
	return n.subscribeChildren(ctx, "add", cb)
}

// SubscribeDel installs cb on <path>.del.
func (n *NodeProxy) SubscribeDel(ctx context.Context, cb func(uuid string, child *NodeProxy)) (string, error) {
	return n.subscribeChildren(ctx, "del", cb)
}

func (n *NodeProxy) subscribeChildren(ctx context.Context, op string, cb func(string, *NodeProxy)) (string, error) {
	path := wireutil.JoinPath(append(append([]string{}, n.parts...), op)...)
	handler := func(_ context.Context, data any, _ []string) (any, error) {
		m, ok := data.(map[string]any)
		if !ok {
			return nil, nil
		}
		for uuid, rendered := range m {
			cb(uuid, &NodeProxy{base{conn: n.conn, parts: n.child(uuid), cached: rendered}})
		}
		return nil, nil
	}
	return n.conn.Subscribe(ctx, path, busconn.Handler(handler), false, false)
}

// Unsubscribe drops a subscription created by SubscribeAdd/SubscribeDel.
func (n *NodeProxy) Unsubscribe(sid string) error { return n.conn.Unsubscribe(sid) }
