package tree

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/element"
)

// ModuleInfo is the module self-description returned on the "info"
// subject and aggregated by discovery.DiscoverModules.
type ModuleInfo struct {
	ID             string `json:"id"`
	Hostname       string `json:"hostname"`
	Client         string `json:"client"`
	HasStaticFiles bool   `json:"hasStaticFiles"`
	Status         struct {
		HeapSize uint64 `json:"heapSize"`
	} `json:"status"`
}

// Dispatcher installs the three server-side subscriptions every module
// runs: describe (subject <id>), per-path get/set (subject
// <id>.<hostname>.>), and module info (subject info). Grounded on the
// teacher's eventbus.Bus.Dispatch: resolve a handler, isolate its
// errors, and never let one bad request take the subscription down.
type Dispatcher struct {
	conn *busconn.Conn
	tree *Tree
}

// NewDispatcher creates a dispatcher over tree, publishing and
// answering requests through conn.
func NewDispatcher(conn *busconn.Conn, tree *Tree) *Dispatcher {
	return &Dispatcher{conn: conn, tree: tree}
}

// Start installs all three subscriptions.
func (d *Dispatcher) Start(ctx context.Context) error {
	if _, err := d.conn.Subscribe(ctx, "", d.handleDescribe, true, false); err != nil {
		return fmt.Errorf("tree: subscribe describe: %w", err)
	}
	if _, err := d.conn.Subscribe(ctx, ">", d.handlePathOp, true, true); err != nil {
		return fmt.Errorf("tree: subscribe path ops: %w", err)
	}
	if _, err := d.conn.Subscribe(ctx, "info", d.handleInfo, false, false); err != nil {
		return fmt.Errorf("tree: subscribe info: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleDescribe(_ context.Context, data any, _ []string) (any, error) {
	maxLevel := 1 << 30
	if m, ok := data.(map[string]any); ok {
		if lvl, ok := m["max_level"].(float64); ok {
			maxLevel = int(lvl)
		}
	}
	return map[string]any{d.conn.Hostname(): d.tree.Describe(maxLevel)}, nil
}

func (d *Dispatcher) handlePathOp(ctx context.Context, data any, captures []string) (any, error) {
	if len(captures) == 0 {
		return element.NotFound(), nil
	}
	remainder := strings.Split(captures[0], ".")
	if len(remainder) == 0 {
		return element.NotFound(), nil
	}

	op := remainder[len(remainder)-1]
	elementParts := remainder[:len(remainder)-1]

	var handlerParts []string
	if len(elementParts) > 0 && elementParts[len(elementParts)-1] == "value" {
		handlerParts = []string{"value"}
	}

	el, ok := d.tree.Search(elementParts)
	if !ok {
		return element.NotFound(), nil
	}

	var (
		reply any
		err   error
	)
	switch op {
	case "get":
		reply, err = el.HandleGet(ctx, data, handlerParts)
	case "set":
		reply, err = el.HandleSet(ctx, data, handlerParts)
	default:
		return element.NotFound(), nil
	}
	if err != nil {
		return element.Internal(err), nil
	}
	return reply, nil
}

func (d *Dispatcher) handleInfo(_ context.Context, _ any, _ []string) (any, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	info := ModuleInfo{
		ID:             d.conn.ID(),
		Hostname:       d.conn.Hostname(),
		Client:         "go",
		HasStaticFiles: false,
	}
	info.Status.HeapSize = mem.HeapAlloc
	return info, nil
}
