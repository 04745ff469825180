// Command vbus-thermostat is a minimal example module: it exposes a
// "dev" node with a "temp" attribute and a "scan" method, the same
// shape spec.md §8's scenario 1 and 2 exercise. Grounded on the
// teacher's cmd/dialog-gateway pattern of a small long-running process
// built directly on the library rather than the daemon/RPC split bd
// uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vbus-go/vbus"
	"github.com/vbus-go/vbus/internal/busconn"
)

func main() {
	id := flag.String("id", "examples.thermostat", "module id")
	configDir := flag.String("config-dir", "", "directory holding <id>.conf")
	hub := flag.String("hub", "", "explicit hub address or hostname")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := vbus.Connect(ctx, vbus.Options{
		ID:        *id,
		ConfigDir: *configDir,
		HubID:     *hub,
		MDNS:      busconn.NewMDNSBrowser(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := run(ctx, client); err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *vbus.Client) error {
	if _, err := client.AddNode(ctx, nil, "dev", nil); err != nil {
		return fmt.Errorf("add dev node: %w", err)
	}
	if _, err := client.AddAttribute(ctx, []string{"dev"}, "name", "thermostat-1", true, nil, nil, nil); err != nil {
		return fmt.Errorf("add name attribute: %w", err)
	}

	reading := 21.0
	onGet := func(context.Context) (any, error) { return reading, nil }
	tempAttr, err := client.AddAttribute(ctx, []string{"dev"}, "temp", reading, true, nil, nil, onGet)
	if err != nil {
		return fmt.Errorf("add temp attribute: %w", err)
	}

	scan := func(ctx context.Context, seconds int) error {
		time.Sleep(time.Duration(seconds) * time.Millisecond)
		reading = 18 + rand.Float64()*6
		_, err := tempAttr.HandleSet(ctx, reading, nil)
		return err
	}
	if _, err := client.AddMethod(ctx, []string{"dev"}, "scan", scan); err != nil {
		return fmt.Errorf("add scan method: %w", err)
	}

	if err := client.Expose(ctx, "status", "http", 8080, "status"); err != nil {
		return fmt.Errorf("expose status uri: %w", err)
	}

	<-ctx.Done()
	return nil
}
