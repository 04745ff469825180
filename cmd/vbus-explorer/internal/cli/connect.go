package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vbus-go/vbus"
	"github.com/vbus-go/vbus/internal/busconn"
)

func connect(ctx context.Context) (*vbus.Client, error) {
	return vbus.Connect(ctx, vbus.Options{
		ID:        flags.id,
		ConfigDir: flags.configDir,
		HubID:     flags.hub,
		MDNS:      busconn.NewMDNSBrowser(),
	})
}

func printResult(v any) error {
	switch flags.format {
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Print(string(data))
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Println(string(data))
	}
	return nil
}
