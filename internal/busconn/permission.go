package busconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/vbus-go/vbus/internal/configstore"
)

// ErrPermissionNotAcknowledged is returned by AssertPermissions when the
// authorization service replies with a non-truthy ack, per spec.md §7's
// "permission denied / not acknowledged" error case.
var ErrPermissionNotAcknowledged = errors.New("busconn: permission request not acknowledged")

// AssertPermissions issues the authoritative permission-set request to
// the controlling host's authorization service: subject
// system.authorization.<remote-host>.<id>.<host>.permissions.set.
// Both the enrollment bootstrap and the permission negotiator
// (internal/permission) call this; it is the one place that knows the
// exact subject shape.
func (c *Conn) AssertPermissions(ctx context.Context, id, localHost, remoteHost string, perms configstore.Permissions) error {
	subject := fmt.Sprintf("system.authorization.%s.%s.%s.permissions.set", remoteHost, id, localHost)
	reply, err := c.Request(ctx, subject, perms, false, false)
	if err != nil {
		return fmt.Errorf("busconn: assert permissions: %w", err)
	}
	if ok, isBool := reply.(bool); isBool && !ok {
		return ErrPermissionNotAcknowledged
	}
	return nil
}

func authBlockJSON(cfg *configstore.Config) ([]byte, error) {
	data, err := json.Marshal(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("busconn: marshal auth block: %w", err)
	}
	return data, nil
}

// localNetworkIP returns the local machine's outbound network address,
// used to populate the config's networkIp field and the system.info
// request payload. It never dials out: Dial on a UDP socket just
// selects a local interface via routing, without sending packets.
func localNetworkIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}
