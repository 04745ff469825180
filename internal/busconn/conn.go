// Package busconn is the bus client wrapper: it owns the underlying
// NATS connection, discovers the bus URL via the bootstrap fallback
// chain, enrolls the module's credentials, and exposes prefixed
// publish/request/subscribe operations that automatically prepend id
// and hostname segments and capture wildcard bindings as handler
// arguments. Grounded on the teacher's internal/slackbot/nats.go
// (reconnect loop, fresh-task dispatch) and internal/daemon/nats.go
// (embedded server, connection lifecycle), generalized from a single
// fixed JetStream subject to vBus's dynamic regex-matched subjects.
package busconn

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vbus-go/vbus/internal/debug"
	"github.com/vbus-go/vbus/internal/wireutil"
)

var tracer = otel.Tracer("github.com/vbus-go/vbus/internal/busconn")

// DefaultRequestTimeout is the request deadline used when the caller
// does not supply one explicitly.
const DefaultRequestTimeout = 500 * time.Millisecond

// Handler processes one inbound message on a subscription. captures
// holds the regex groups extracted from the wildcard segments of the
// subscribed subject, in order. A non-nil reply is published to the
// message's reply subject, if any.
type Handler func(ctx context.Context, data any, captures []string) (reply any, err error)

// Conn is the bus client wrapper used by every other vBus component.
type Conn struct {
	nc       *nats.Conn
	id       string
	hostname string

	mu        sync.Mutex
	subs      map[string]*nats.Subscription
	nextSubID uint64
}

// wrap adapts an already-established *nats.Conn into a Conn. Used by
// the bootstrap sequence once a URL and credentials are settled, and
// directly by tests against an embedded server.
func wrap(nc *nats.Conn, id, hostname string) *Conn {
	return &Conn{nc: nc, id: id, hostname: hostname, subs: make(map[string]*nats.Subscription)}
}

// Raw returns the underlying NATS connection, for components (embedded
// server health checks, discovery's inbox subscriptions) that need
// lower-level access than the prefixed wrapper provides.
func (c *Conn) Raw() *nats.Conn { return c.nc }

// ID returns the module's id (domain.app).
func (c *Conn) ID() string { return c.id }

// Hostname returns the module's resolved hostname.
func (c *Conn) Hostname() string { return c.hostname }

// SetHostname overrides the resolved hostname, used once a
// system.info round trip returns the authoritative remote hostname.
func (c *Conn) SetHostname(h string) { c.hostname = h }

// Publish encodes payload and publishes it to path, prefixed per
// withID/withHost.
func (c *Conn) Publish(ctx context.Context, path string, payload any, withID, withHost bool) error {
	subject := buildSubject(c.id, c.hostname, path, withID, withHost)
	_, span := tracer.Start(ctx, "vbus.publish", trace.WithAttributes(attribute.String("vbus.subject", subject)))
	defer span.End()

	data, err := wireutil.Encode(payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("busconn: encode publish payload: %w", err)
	}
	if err := c.nc.Publish(subject, data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("busconn: publish %s: %w", subject, err)
	}
	return nil
}

// Request encodes payload, sends a request to path and decodes the
// reply. ctx's deadline bounds the wait; if ctx carries no deadline,
// DefaultRequestTimeout is applied.
func (c *Conn) Request(ctx context.Context, path string, payload any, withID, withHost bool) (any, error) {
	subject := buildSubject(c.id, c.hostname, path, withID, withHost)
	ctx, span := tracer.Start(ctx, "vbus.request", trace.WithAttributes(attribute.String("vbus.subject", subject)))
	defer span.End()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}

	data, err := wireutil.Encode(payload)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("busconn: encode request payload: %w", err)
	}

	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("busconn: request %s: %w", subject, err)
	}

	reply, err := wireutil.DecodeAny(msg.Data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("busconn: decode reply from %s: %w", subject, err)
	}
	return reply, nil
}

// Subscribe installs handler on path, prefixed per withID/withHost.
// Each inbound message is dispatched to a fresh goroutine so that a
// slow handler never blocks subsequent deliveries on the same
// subscription; a panic in handler is recovered and logged, never
// tearing down the subscription, matching spec.md §4.1's "exceptions in
// handlers are caught and logged; they never tear down the subscription."
func (c *Conn) Subscribe(ctx context.Context, path string, handler Handler, withID, withHost bool) (string, error) {
	subject := buildSubject(c.id, c.hostname, path, withID, withHost)
	re := wireutil.SubjectToRegex(subject)

	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		go c.dispatch(ctx, re, msg, handler)
	})
	if err != nil {
		return "", fmt.Errorf("busconn: subscribe %s: %w", subject, err)
	}

	sid := fmt.Sprintf("%s#%d", subject, atomic.AddUint64(&c.nextSubID, 1))
	c.mu.Lock()
	c.subs[sid] = sub
	c.mu.Unlock()
	return sid, nil
}

func (c *Conn) dispatch(ctx context.Context, re *regexp.Regexp, msg *nats.Msg, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			debug.Logf("busconn: handler panic on %s: %v", msg.Subject, r)
		}
	}()

	var captures []string
	if m := re.FindStringSubmatch(msg.Subject); len(m) > 1 {
		captures = m[1:]
	}

	data, err := wireutil.DecodeAny(msg.Data)
	if err != nil {
		debug.Logf("busconn: decode payload on %s: %v", msg.Subject, err)
		return
	}

	reply, err := handler(ctx, data, captures)
	if err != nil {
		debug.Logf("busconn: handler error on %s: %v", msg.Subject, err)
		return
	}
	if msg.Reply == "" {
		return
	}

	payload, err := wireutil.Encode(reply)
	if err != nil {
		debug.Logf("busconn: encode reply on %s: %v", msg.Subject, err)
		return
	}
	if err := c.nc.Publish(msg.Reply, payload); err != nil {
		debug.Logf("busconn: publish reply on %s: %v", msg.Reply, err)
	}
}

// Unsubscribe drains and removes a subscription created by Subscribe.
func (c *Conn) Unsubscribe(sid string) error {
	c.mu.Lock()
	sub, ok := c.subs[sid]
	if ok {
		delete(c.subs, sid)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

// Flush blocks until all buffered publishes have been sent.
func (c *Conn) Flush() error { return c.nc.Flush() }

// Close drains every subscription and closes the connection.
func (c *Conn) Close() {
	c.mu.Lock()
	subs := make([]*nats.Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Drain()
	}
	c.nc.Close()
}
