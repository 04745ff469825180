package busconn

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// mdnsWindow is the fixed discovery window for strategy 5 of the
// bootstrap chain. Per spec.md §9's design note, this is a design
// constant, not a configurable.
const mdnsWindow = 5 * time.Second

const mdnsServiceType = "_nats._tcp"

// MDNSEntry is one discovered bus advertisement.
type MDNSEntry struct {
	Name      string
	Host      string
	Hostname  string
	NetworkIP string
	Port      int
}

// MDNSBrowser is the out-of-scope "mDNS/zeroconf browser" collaborator
// from spec.md §1, given a concrete adapter here so the bootstrap chain
// is runnable end to end.
type MDNSBrowser interface {
	Browse(ctx context.Context, window time.Duration) ([]MDNSEntry, error)
}

// hashicorpMDNSBrowser implements MDNSBrowser with
// github.com/hashicorp/mdns, browsing _nats._tcp.local. for the fixed
// window and filtering to entries whose advertised name begins with
// "vBus", matching original_source/vbus/helpers.py's zeroconf_search.
type hashicorpMDNSBrowser struct{}

// NewMDNSBrowser returns the default mDNS browser implementation.
func NewMDNSBrowser() MDNSBrowser { return hashicorpMDNSBrowser{} }

func (hashicorpMDNSBrowser) Browse(ctx context.Context, window time.Duration) ([]MDNSEntry, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 16)
	var entries []MDNSEntry
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entriesCh {
			entries = append(entries, MDNSEntry{
				Name:      e.Name,
				Host:      e.Host,
				Hostname:  firstInfoField(e.InfoFields, "hostname"),
				NetworkIP: firstInfoField(e.InfoFields, "networkIp"),
				Port:      e.Port,
			})
		}
	}()

	params := &mdns.QueryParam{
		Service:             mdnsServiceType,
		Domain:              "local",
		Timeout:             window,
		Entries:             entriesCh,
		DisableIPv6:         true,
		WantUnicastResponse: false,
	}
	err := mdns.Query(params)
	close(entriesCh)
	<-done
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func firstInfoField(fields []string, key string) string {
	prefix := key + "="
	for _, f := range fields {
		if strings.HasPrefix(f, prefix) {
			return strings.TrimPrefix(f, prefix)
		}
	}
	return ""
}
