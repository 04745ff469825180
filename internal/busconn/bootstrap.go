package busconn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/vbus-go/vbus/internal/configstore"
	"github.com/vbus-go/vbus/internal/debug"
)

// ErrConnection is returned when every bootstrap URL candidate fails to
// connect, per spec.md §4.1's "the operation fails with ConnectionError."
var ErrConnection = errors.New("vbus: cannot find a working bus url")

// connectTimeout bounds each anonymous candidate connect attempt.
const connectTimeout = 5 * time.Second

// defaultPort is the bus port assumed by the hostname-derived and
// global default URL strategies.
const defaultPort = 4222

// BootstrapOptions configures Connect.
type BootstrapOptions struct {
	// ID is the module id, domain.app.
	ID string
	// ConfigDir is the directory holding <id>.conf (VBUS_PATH or
	// $HOME/vbus).
	ConfigDir string
	// HubID, if set, is an explicit hub address or hostname tried
	// first (strategy 1).
	HubID string
	// Hostname overrides the local hostname lookup, mainly for tests.
	Hostname func() (string, error)
	// MDNS provides the mDNS/zeroconf browsing collaborator (strategy
	// 5). A nil value skips that strategy.
	MDNS MDNSBrowser
}

func (o *BootstrapOptions) hostname() (string, error) {
	if o.Hostname != nil {
		return o.Hostname()
	}
	return os.Hostname()
}

type candidate struct {
	strategy   string
	url        string
	remoteHost string
}

// Connect runs the full bootstrap: URL discovery, credential
// enrollment, and permission re-assertion, returning a ready-to-use
// Conn and the (possibly freshly created) config.
func Connect(ctx context.Context, opts BootstrapOptions) (*Conn, *configstore.Config, error) {
	hostname, err := opts.hostname()
	if err != nil {
		return nil, nil, fmt.Errorf("busconn: resolve hostname: %w", err)
	}

	cfgPath := configstore.Path(opts.ConfigDir, opts.ID)
	cfg, err := configstore.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("busconn: load config: %w", err)
	}
	if cfg == nil {
		cfg, err = configstore.DefaultConfig(opts.ID, hostname)
		if err != nil {
			return nil, nil, fmt.Errorf("busconn: create default config: %w", err)
		}
	}

	url, remoteHost, err := findURL(ctx, opts, cfg)
	if err != nil {
		return nil, nil, err
	}
	cfg.Vbus.URL = url

	nc, err := connectWithCredentials(url, opts.ID, cfg, hostname)
	if err != nil {
		return nil, nil, fmt.Errorf("busconn: enroll: %w", err)
	}

	conn := wrap(nc, opts.ID, hostname)

	if !cfg.ExternalCredentials {
		if info, err := requestVbusInfo(ctx, conn); err == nil && info != "" {
			remoteHost = info
		}
	}
	if remoteHost != "" {
		cfg.Vbus.Hostname = remoteHost
	}
	cfg.Vbus.NetworkIP = localNetworkIP()

	if err := assertPermissionsWithRetry(ctx, conn, opts.ID, hostname, cfg); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("busconn: assert permissions: %w", err)
	}

	if err := configstore.Save(cfgPath, cfg); err != nil {
		debug.Logf("busconn: save config %s: %v", cfgPath, err)
	}

	return conn, cfg, nil
}

// findURL runs the six-strategy fallback chain, returning the first URL
// that accepts an anonymous 5-second-bounded connection.
func findURL(ctx context.Context, opts BootstrapOptions, cfg *configstore.Config) (string, string, error) {
	candidates := buildCandidates(ctx, opts, cfg)
	for _, c := range candidates {
		if c.url == "" {
			continue
		}
		if testURL(ctx, c.url) {
			debug.Logf("busconn: url found using strategy %q: %s", c.strategy, c.url)
			return c.url, c.remoteHost, nil
		}
		debug.Logf("busconn: strategy %q failed: %s", c.strategy, c.url)
	}
	return "", "", ErrConnection
}

func buildCandidates(ctx context.Context, opts BootstrapOptions, cfg *configstore.Config) []candidate {
	var candidates []candidate

	if opts.HubID != "" {
		host := opts.HubID
		if net.ParseIP(opts.HubID) == nil {
			host = opts.HubID + ".local"
		}
		candidates = append(candidates, candidate{"explicit-hub", natsURL(host), opts.HubID})
	}

	if cfg.Vbus.URL != "" {
		candidates = append(candidates, candidate{"config-file", cfg.Vbus.URL, cfg.Vbus.Hostname})
	}

	if envURL := os.Getenv("VBUS_URL"); envURL != "" {
		candidates = append(candidates, candidate{"env", envURL, ""})
	}

	localHostname, _ := opts.hostname()
	candidates = append(candidates, candidate{"local-default", natsURL(localHostname + ".service.veeamesh.local"), ""})

	if opts.MDNS != nil {
		if entries, err := opts.MDNS.Browse(ctx, mdnsWindow); err == nil {
			for _, e := range entries {
				if !hasVbusPrefix(e.Name) {
					continue
				}
				host := e.Host
				if host == "" {
					host = e.Hostname
				}
				candidates = append(candidates, candidate{"mdns", natsURL(host), e.Hostname})
			}
		}
	}

	candidates = append(candidates, candidate{"global-default", natsURL("vbus.service.veeamesh.local"), ""})

	return candidates
}

func natsURL(host string) string {
	return fmt.Sprintf("nats://%s:%d", host, defaultPort)
}

func hasVbusPrefix(name string) bool {
	for i, r := range name {
		if r == '.' {
			return name[:i] == "vBus" || name[:i] == "vbus"
		}
	}
	return name == "vBus" || name == "vbus"
}

func testURL(ctx context.Context, url string) bool {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	nc, err := dialAnonymous(dialCtx, url)
	if err != nil {
		return false
	}
	nc.Close()
	return true
}

func dialAnonymous(ctx context.Context, url string) (*nats.Conn, error) {
	_ = ctx
	return nats.Connect(url,
		nats.UserInfo("anonymous", "anonymous"),
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(false),
	)
}

// connectWithCredentials connects with the module's stored user and
// password. If authentication is rejected, it falls back to an
// anonymous enrollment handshake and retries.
func connectWithCredentials(url, id string, cfg *configstore.Config, hostname string) (*nats.Conn, error) {
	if cfg.ExternalCredentials {
		return nats.Connect(url, nats.Name(id), nats.Timeout(connectTimeout))
	}

	nc, err := nats.Connect(url,
		nats.UserInfo(cfg.Client.User, cfg.Key.Private),
		nats.Name(id),
		nats.Timeout(connectTimeout),
	)
	if err == nil {
		return nc, nil
	}
	debug.Logf("busconn: connect with credentials failed, enrolling anonymously: %v", err)

	if err := enrollAnonymously(url, hostname, cfg); err != nil {
		return nil, err
	}
	time.Sleep(time.Second)

	return nats.Connect(url,
		nats.UserInfo(cfg.Client.User, cfg.Key.Private),
		nats.Name(id),
		nats.Timeout(connectTimeout),
	)
}

func enrollAnonymously(url, hostname string, cfg *configstore.Config) error {
	nc, err := dialAnonymous(context.Background(), url)
	if err != nil {
		return fmt.Errorf("busconn: anonymous enroll connect: %w", err)
	}
	defer nc.Close()

	data, err := authBlockJSON(cfg)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("system.authorization.%s.add", hostname)
	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("busconn: publish auth block: %w", err)
	}
	return nc.Flush()
}

// requestVbusInfo asks the bus for the authoritative remote hostname.
func requestVbusInfo(ctx context.Context, conn *Conn) (string, error) {
	reply, err := conn.Request(ctx, "system.info", localNetworkIP(), false, false)
	if err != nil {
		return "", err
	}
	s, _ := reply.(string)
	return s, nil
}

// assertPermissionsWithRetry re-asserts the module's permission set,
// retrying with a constant 1-second backoff until acknowledged, bounded
// by a 10-second request timeout per attempt.
func assertPermissionsWithRetry(ctx context.Context, conn *Conn, id, hostname string, cfg *configstore.Config) error {
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return conn.AssertPermissions(reqCtx, id, hostname, cfg.Vbus.Hostname, cfg.Client.Permissions)
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(time.Second), ctx)
	return backoff.Retry(op, policy)
}
