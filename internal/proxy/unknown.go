package proxy

// UnknownProxy wraps a freshly-received subtree whose shape has not
// yet been discriminated: the result of a describe, a discover merge,
// or a get on a path whose element kind the caller does not know in
// advance.
type UnknownProxy struct {
	base
}

// NewUnknown wraps cached at the dotted path parts.
func NewUnknown(conn Requester, parts []string, cached any) *UnknownProxy {
	return &UnknownProxy{base{conn: conn, parts: parts, cached: cached}}
}

// Resolve narrows the proxy to its concrete kind: *NodeProxy,
// *AttributeProxy, *MethodProxy, or an error if the cached subtree is
// itself an Error reply.
func (u *UnknownProxy) Resolve() (any, error) {
	switch shapeOf(u.cached) {
	case "attribute":
		return &AttributeProxy{base: u.base}, nil
	case "method":
		return &MethodProxy{base: u.base}, nil
	case "error":
		m, _ := u.cached.(map[string]any)
		return nil, remoteError(m)
	default:
		return &NodeProxy{base: u.base}, nil
	}
}

// AsNode resolves and asserts the node shape, for callers that already
// know what they discovered (e.g. the result of Discover, whose root
// is always a node per spec.md §4.5).
func (u *UnknownProxy) AsNode() (*NodeProxy, error) {
	resolved, err := u.Resolve()
	if err != nil {
		return nil, err
	}
	n, ok := resolved.(*NodeProxy)
	if !ok {
		return nil, errNotANode
	}
	return n, nil
}
