// Package proxy implements the client-side views over a remote
// module's tree: UnknownProxy (shape discrimination), NodeProxy,
// AttributeProxy, MethodProxy, and their wildcard variants. Grounded
// on the teacher's internal/rpc.Client: a thin wrapper that turns a
// connection plus an address into typed request/subscribe calls,
// generalized from one fixed daemon endpoint to an arbitrary remote
// tree path.
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/wireutil"
)

// DefaultTimeout is applied to a remote call whose caller does not
// supply one explicitly.
const DefaultTimeout = 500 * time.Millisecond

// Requester is the narrow dependency every proxy needs from the bus
// connection: request/publish/subscribe on a fully-qualified subject,
// never prefixed with the local id/hostname.
type Requester interface {
	Request(ctx context.Context, path string, payload any, withID, withHost bool) (any, error)
	Publish(ctx context.Context, path string, payload any, withID, withHost bool) error
	Subscribe(ctx context.Context, path string, handler busconn.Handler, withID, withHost bool) (string, error)
	Unsubscribe(sid string) error
}

// base carries the plumbing shared by every concrete proxy: the
// connection, the remote path (already id.host-prefixed) as segments,
// and whichever subtree was cached from a describe or discover.
type base struct {
	conn   Requester
	parts  []string
	cached any
}

// Path returns the dotted remote path this proxy addresses.
func (b *base) Path() string { return wireutil.JoinPath(b.parts...) }

func (b *base) child(parts ...string) []string {
	return append(append([]string{}, b.parts...), parts...)
}

// ErrWildcardForbidden is returned by WildcardNodeProxy/WildcardAttrProxy
// operations that spec.md §4.4 restricts to subscribe-only use.
var ErrWildcardForbidden = fmt.Errorf("proxy: get_node/get_method forbidden on a wildcard path")

// shapeOf classifies a decoded subtree per §3's field-presence
// discrimination: an object carrying "schema" is an attribute, one
// carrying both "params" and "returns" is a method, anything else
// (including a bare map of children) is a node.
func shapeOf(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return "node"
	}
	if _, hasCode := m["code"]; hasCode {
		if _, hasMessage := m["message"]; hasMessage {
			return "error"
		}
	}
	if _, hasSchema := m["schema"]; hasSchema {
		return "attribute"
	}
	if _, hasParams := m["params"]; hasParams {
		if _, hasReturns := m["returns"]; hasReturns {
			return "method"
		}
	}
	return "node"
}

// isWildcardPath reports whether any segment of path is the NATS
// single-segment wildcard.
func isWildcardPath(parts []string) bool {
	for _, p := range parts {
		if p == "*" {
			return true
		}
	}
	return false
}
