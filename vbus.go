// Package vbus is the public entry point: it bootstraps a bus
// connection, owns the module's element tree and dispatcher, and
// exposes the small set of operations an application actually calls —
// add/remove elements, ask for permissions, discover peers, expose a
// URI. Everything else lives in internal packages this façade wires
// together.
package vbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/configstore"
	"github.com/vbus-go/vbus/internal/discovery"
	"github.com/vbus-go/vbus/internal/element"
	"github.com/vbus-go/vbus/internal/permission"
	"github.com/vbus-go/vbus/internal/proxy"
	"github.com/vbus-go/vbus/internal/tree"
)

// Options configures Connect. ID is the only required field; the rest
// fall back to environment-derived defaults, matching
// busconn.BootstrapOptions.
type Options struct {
	ID        string
	ConfigDir string
	HubID     string
	Hostname  func() (string, error)
	MDNS      busconn.MDNSBrowser
}

// Client is a connected vBus module: a bus connection, its element
// tree, and the dispatcher answering remote describe/get/set/info
// requests against that tree.
type Client struct {
	conn       *busconn.Conn
	cfg        *configstore.Config
	cfgPath    string
	tree       *tree.Tree
	dispatcher *tree.Dispatcher
	negotiator *permission.Negotiator
}

// Connect runs the full bootstrap chain (§4.1), then starts the tree
// dispatcher so the module immediately answers describe/get/set/info
// requests.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	conn, cfg, err := busconn.Connect(ctx, busconn.BootstrapOptions{
		ID:        opts.ID,
		ConfigDir: opts.ConfigDir,
		HubID:     opts.HubID,
		Hostname:  opts.Hostname,
		MDNS:      opts.MDNS,
	})
	if err != nil {
		return nil, fmt.Errorf("vbus: connect: %w", err)
	}

	cfgPath := configstore.Path(opts.ConfigDir, opts.ID)
	tr := tree.New(conn)
	dispatcher := tree.NewDispatcher(conn, tr)
	if err := dispatcher.Start(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vbus: start dispatcher: %w", err)
	}

	negotiator := permission.NewNegotiator(conn, cfgPath, cfg, cfg.Vbus.Hostname)

	return &Client{conn: conn, cfg: cfg, cfgPath: cfgPath, tree: tr, dispatcher: dispatcher, negotiator: negotiator}, nil
}

// Close drains every subscription and closes the bus connection.
func (c *Client) Close() { c.conn.Close() }

// ID returns the module's id (domain.app).
func (c *Client) ID() string { return c.conn.ID() }

// Hostname returns the module's resolved hostname.
func (c *Client) Hostname() string { return c.conn.Hostname() }

// AddNode adds an empty child node under parentPath.
func (c *Client) AddNode(ctx context.Context, parentPath []string, uuid string, onSet func(context.Context, any, []string) (any, error)) (*element.Node, error) {
	return c.tree.AddNode(ctx, parentPath, uuid, onSet)
}

// AddAttribute adds a data attribute under parentPath.
func (c *Client) AddAttribute(ctx context.Context, parentPath []string, uuid string, value any, hasValue bool, schema map[string]any, onSet func(context.Context, any) error, onGet func(context.Context) (any, error)) (*element.Attribute, error) {
	return c.tree.AddAttribute(ctx, parentPath, uuid, value, hasValue, schema, onSet, onGet)
}

// AddMethod introspects fn and adds it as a method under parentPath.
func (c *Client) AddMethod(ctx context.Context, parentPath []string, uuid string, fn any) (*element.Method, error) {
	return c.tree.AddMethod(ctx, parentPath, uuid, fn)
}

// RemoveElement removes the named child of parentPath.
func (c *Client) RemoveElement(ctx context.Context, parentPath []string, uuid string) error {
	return c.tree.RemoveElement(ctx, parentPath, uuid)
}

// GetAttribute searches the local tree for an attribute.
func (c *Client) GetAttribute(parts ...string) (*element.Attribute, bool) {
	return c.tree.GetAttribute(parts...)
}

// GetMethod searches the local tree for a method.
func (c *Client) GetMethod(parts ...string) (*element.Method, bool) {
	return c.tree.GetMethod(parts...)
}

// AskPermission requests the additional scope path be granted,
// per spec.md §4.6. It is idempotent: a path already granted produces
// no bus traffic.
func (c *Client) AskPermission(ctx context.Context, path string) (bool, error) {
	return c.negotiator.AskPermission(ctx, path)
}

// Discover broadcasts a describe request across every module sharing
// domain.app and merges the replies received within window.
func (c *Client) Discover(domain, app string, window time.Duration, maxLevel *int) (*proxy.NodeProxy, error) {
	return discovery.Discover(c.conn, domain, app, window, maxLevel)
}

// DiscoverModules collects every module's self-description within
// window.
func (c *Client) DiscoverModules(window time.Duration) ([]tree.ModuleInfo, error) {
	return discovery.DiscoverModules(c.conn, window)
}

// Remote addresses a known module directly by id and hostname, without
// running discovery first.
func (c *Client) Remote(id, hostname string) *proxy.NodeProxy {
	return proxy.NewNode(c.conn, []string{id, hostname}, nil)
}

// Expose lazily creates a "uris" child node under the root and adds an
// attribute named name whose value is the assembled URI, per
// spec.md §4.7. It prefers the network IP discovered during bootstrap,
// falling back to the bus connection's hostname.
func (c *Client) Expose(ctx context.Context, name, protocol string, port int, path string) error {
	if _, ok := c.tree.Search([]string{"uris"}); !ok {
		if _, err := c.tree.AddNode(ctx, nil, "uris", nil); err != nil {
			return fmt.Errorf("vbus: expose %s: create uris node: %w", name, err)
		}
	}

	host := c.cfg.Vbus.NetworkIP
	if host == "" {
		host = c.conn.Hostname()
	}
	uri := fmt.Sprintf("%s://%s:%d", protocol, host, port)
	if path != "" {
		uri += "/" + strings.TrimPrefix(path, "/")
	}

	_, err := c.tree.AddAttribute(ctx, []string{"uris"}, name, uri, true, nil, nil, nil)
	if err != nil {
		return fmt.Errorf("vbus: expose %s: %w", name, err)
	}
	return nil
}
