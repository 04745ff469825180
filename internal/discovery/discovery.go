// Package discovery implements the two open-ended reply-aggregation
// operations of spec.md §4.5: discover, which merges per-host describe
// replies into a single proxy, and discover_modules, which collects
// module self-descriptions. Both need a many-reply request pattern
// nats.go's RequestWithContext does not offer, so they talk to the raw
// connection directly, grounded on the teacher's daemon/nats.go use of
// a dedicated inbox subject for broadcast-style replies.
package discovery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vbus-go/vbus/internal/busconn"
	"github.com/vbus-go/vbus/internal/proxy"
	"github.com/vbus-go/vbus/internal/tree"
	"github.com/vbus-go/vbus/internal/wireutil"
)

// Discover broadcasts a describe request on <domain>.<app> and merges
// every reply received within window into one tree, keyed by the
// replying host. maxLevel is nil for no depth limit.
func Discover(conn *busconn.Conn, domain, app string, window time.Duration, maxLevel *int) (*proxy.NodeProxy, error) {
	subject := wireutil.JoinPath(domain, app)
	merged, err := collectReplies(conn, subject, buildDescribePayload(maxLevel), window, mergeTopLevel)
	if err != nil {
		return nil, err
	}
	unknown := proxy.NewUnknown(conn, wireutil.SplitPath(subject), merged)
	return unknown.AsNode()
}

// DiscoverModules broadcasts a request on "info" and collects every
// module self-description received within window.
func DiscoverModules(conn *busconn.Conn, window time.Duration) ([]tree.ModuleInfo, error) {
	nc := conn.Raw()
	inbox := nats.NewInbox()

	sub, err := nc.SubscribeSync(inbox)
	if err != nil {
		return nil, fmt.Errorf("discovery: subscribe inbox: %w", err)
	}
	defer sub.Unsubscribe()

	if err := nc.PublishRequest("info", inbox, nil); err != nil {
		return nil, fmt.Errorf("discovery: publish info request: %w", err)
	}
	if err := nc.Flush(); err != nil {
		return nil, fmt.Errorf("discovery: flush: %w", err)
	}

	var infos []tree.ModuleInfo
	deadline := time.Now().Add(window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		msg, err := sub.NextMsg(remaining)
		if err != nil {
			break
		}
		var info tree.ModuleInfo
		if err := json.Unmarshal(msg.Data, &info); err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func buildDescribePayload(maxLevel *int) any {
	if maxLevel == nil {
		return map[string]any{}
	}
	return map[string]any{"max_level": *maxLevel}
}

// mergeTopLevel shallow-merges each decoded reply's top-level keys
// into acc, matching spec.md §8's invariant that the merged key set is
// the union of per-reply top-level key sets.
func mergeTopLevel(acc map[string]any, reply any) {
	m, ok := reply.(map[string]any)
	if !ok {
		return
	}
	for k, v := range m {
		acc[k] = v
	}
}

func collectReplies(conn *busconn.Conn, subject string, payload any, window time.Duration, merge func(map[string]any, any)) (map[string]any, error) {
	nc := conn.Raw()
	inbox := nats.NewInbox()

	sub, err := nc.SubscribeSync(inbox)
	if err != nil {
		return nil, fmt.Errorf("discovery: subscribe inbox: %w", err)
	}
	defer sub.Unsubscribe()

	data, err := wireutil.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("discovery: encode request payload: %w", err)
	}
	if err := nc.PublishRequest(subject, inbox, data); err != nil {
		return nil, fmt.Errorf("discovery: publish %s: %w", subject, err)
	}
	if err := nc.Flush(); err != nil {
		return nil, fmt.Errorf("discovery: flush: %w", err)
	}

	merged := map[string]any{}
	deadline := time.Now().Add(window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		msg, err := sub.NextMsg(remaining)
		if err != nil {
			break
		}
		reply, err := wireutil.DecodeAny(msg.Data)
		if err != nil {
			continue
		}
		merge(merged, reply)
	}
	return merged, nil
}
