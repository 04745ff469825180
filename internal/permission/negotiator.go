// Package permission implements the idempotent runtime permission
// negotiation of spec.md §4.6: a client that already holds a connected
// Conn and a loaded config can ask for an additional subscribe/publish
// scope without repeating the full enrollment handshake.
package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/configstore"
)

// negotiationTimeout is the fixed 10s bound spec.md §4.6 and §5
// mandate for a permission request.
const negotiationTimeout = 10 * time.Second

// Negotiator asks the controlling host to extend a module's granted
// paths and persists the result.
type Negotiator struct {
	conn       *busconn.Conn
	cfgPath    string
	cfg        *configstore.Config
	remoteHost string
}

// NewNegotiator builds a negotiator over an already-connected conn and
// loaded config. remoteHost is the hub host resolved during bootstrap.
func NewNegotiator(conn *busconn.Conn, cfgPath string, cfg *configstore.Config, remoteHost string) *Negotiator {
	return &Negotiator{conn: conn, cfgPath: cfgPath, cfg: cfg, remoteHost: remoteHost}
}

// AskPermission appends path to the subscribe and publish lists if
// missing and, only if something actually changed, asserts the
// updated permission block to the authorization service. A denied
// (non-acknowledged) request is reported as (false, nil); a transport
// failure is reported as (false, err).
func (n *Negotiator) AskPermission(ctx context.Context, path string) (bool, error) {
	perms := n.cfg.Client.Permissions

	subscribeChanged := appendIfMissing(&perms.Subscribe, path)
	publishChanged := appendIfMissing(&perms.Publish, path)
	if !subscribeChanged && !publishChanged {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, negotiationTimeout)
	defer cancel()

	err := n.conn.AssertPermissions(ctx, n.conn.ID(), n.conn.Hostname(), n.remoteHost, perms)
	if err != nil {
		if errors.Is(err, busconn.ErrPermissionNotAcknowledged) {
			return false, nil
		}
		return false, fmt.Errorf("permission: ask %s: %w", path, err)
	}

	n.cfg.Client.Permissions = perms
	if err := configstore.Save(n.cfgPath, n.cfg); err != nil {
		return false, fmt.Errorf("permission: persist granted %s: %w", path, err)
	}
	return true, nil
}

func appendIfMissing(list *[]string, path string) bool {
	for _, existing := range *list {
		if existing == path {
			return false
		}
	}
	*list = append(*list, path)
	return true
}
