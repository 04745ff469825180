// Package element implements the in-memory descriptors for the vBus
// element model: Node, Attribute, Method, Error and AsyncNode. Each
// variant answers the same four operations (render as JSON, search a
// sub-path, answer a get, handle a set) through the Element interface,
// grounded on original_source/vbus/definitions.py's Definition base
// class, generalized from Python's duck typing to a Go interface.
package element

import "context"

// Element is the capability set every tree entry implements: JSON
// rendering, sub-path search, and the get/set wire operations.
type Element interface {
	// ToRepr renders the element as its wire JSON representation.
	ToRepr() any

	// SearchPath returns the element reachable by following parts from
	// this element, or (nil, false) if parts does not resolve.
	SearchPath(parts []string) (Element, bool)

	// HandleGet answers a get request addressed to this element. parts
	// is whatever remained of the path after SearchPath resolved this
	// element (e.g. ["value"] for an attribute value read); data is the
	// decoded request payload, used by Attribute to honor in_cache.
	HandleGet(ctx context.Context, data any, parts []string) (any, error)

	// HandleSet answers a set request addressed to this element.
	HandleSet(ctx context.Context, data any, parts []string) (any, error)
}

// Node is a container of named children, rendered as the recursive map
// of their representations. Children are walked in the order they were
// added when building a fresh snapshot for callers that care (Tree's
// describe); the JSON object itself carries no order.
type Node struct {
	order    []string
	children map[string]Element
	onSet    func(ctx context.Context, data any, parts []string) (any, error)
}

// NewNode creates an empty node. onSet may be nil, in which case a set
// addressed directly at this node is a no-op that returns nil.
func NewNode(onSet func(ctx context.Context, data any, parts []string) (any, error)) *Node {
	return &Node{children: make(map[string]Element), onSet: onSet}
}

// Children returns the node's child uuids in insertion order.
func (n *Node) Children() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Child returns the named child, if any.
func (n *Node) Child(uuid string) (Element, bool) {
	e, ok := n.children[uuid]
	return e, ok
}

// AddChild inserts or replaces a child. Replacing an existing uuid
// keeps its original position in insertion order.
func (n *Node) AddChild(uuid string, e Element) {
	if _, exists := n.children[uuid]; !exists {
		n.order = append(n.order, uuid)
	}
	n.children[uuid] = e
}

// RemoveChild removes a child and returns it, or (nil, false) if it was
// not present.
func (n *Node) RemoveChild(uuid string) (Element, bool) {
	e, ok := n.children[uuid]
	if !ok {
		return nil, false
	}
	delete(n.children, uuid)
	for i, id := range n.order {
		if id == uuid {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	return e, true
}

func (n *Node) ToRepr() any {
	out := make(map[string]any, len(n.children))
	for uuid, child := range n.children {
		out[uuid] = child.ToRepr()
	}
	return out
}

func (n *Node) SearchPath(parts []string) (Element, bool) {
	if len(parts) == 0 {
		return n, true
	}
	child, ok := n.children[parts[0]]
	if !ok {
		return nil, false
	}
	return child.SearchPath(parts[1:])
}

func (n *Node) HandleGet(_ context.Context, _ any, _ []string) (any, error) {
	return n.ToRepr(), nil
}

func (n *Node) HandleSet(ctx context.Context, data any, parts []string) (any, error) {
	if n.onSet == nil {
		return nil, nil
	}
	return n.onSet(ctx, data, parts)
}

// AsyncNode is a lazy node: its producer is invoked fresh on every
// access, and the result is never cached, per the design note that an
// AsyncNode's "tree is recomputed each access."
type AsyncNode struct {
	Produce func() *Node
}

func NewAsyncNode(produce func() *Node) *AsyncNode {
	return &AsyncNode{Produce: produce}
}

func (a *AsyncNode) ToRepr() any { return a.Produce().ToRepr() }

func (a *AsyncNode) SearchPath(parts []string) (Element, bool) {
	return a.Produce().SearchPath(parts)
}

func (a *AsyncNode) HandleGet(ctx context.Context, data any, parts []string) (any, error) {
	return a.Produce().HandleGet(ctx, data, parts)
}

func (a *AsyncNode) HandleSet(ctx context.Context, data any, parts []string) (any, error) {
	return a.Produce().HandleSet(ctx, data, parts)
}

// Error is the terminal failure reply for a get/set: {code, message,
// detail?}.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// NotFound builds the canonical "path does not resolve" reply.
func NotFound() *Error {
	return &Error{Code: 404, Message: "not found"}
}

// Internal builds the canonical "handler raised" reply, carrying the
// stringified cause as detail.
func Internal(cause error) *Error {
	return &Error{Code: 500, Message: "internal server error", Detail: cause.Error()}
}

func (e *Error) ToRepr() any { return e }

func (e *Error) SearchPath(parts []string) (Element, bool) {
	if len(parts) == 0 {
		return e, true
	}
	return nil, false
}

func (e *Error) HandleGet(_ context.Context, _ any, _ []string) (any, error) {
	return e, nil
}

func (e *Error) HandleSet(_ context.Context, _ any, _ []string) (any, error) {
	return e, nil
}
