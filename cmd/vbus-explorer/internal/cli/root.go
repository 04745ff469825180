// Package cli implements the vbus-explorer command tree: connect,
// describe, call, and watch-config. Flags are bound through viper so
// VBUS_ID/VBUS_CONFIG_DIR/VBUS_HUB environment variables work
// interchangeably with flags, matching the teacher's cobra+viper
// wiring.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type globalFlags struct {
	id        string
	configDir string
	hub       string
	format    string
	timeout   time.Duration
}

var flags globalFlags

// NewRootCommand builds the vbus-explorer command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "vbus-explorer",
		Short: "Inspect and drive vBus modules from the command line",
	}

	root.PersistentFlags().StringVar(&flags.id, "id", "system.explorer", "module id this tool connects as")
	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", defaultConfigDir(), "directory holding <id>.conf")
	root.PersistentFlags().StringVar(&flags.hub, "hub", "", "explicit hub address or hostname")
	root.PersistentFlags().StringVar(&flags.format, "format", "json", "output format: json or yaml")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 2*time.Second, "remote call timeout")

	_ = viper.BindPFlag("id", root.PersistentFlags().Lookup("id"))
	_ = viper.BindPFlag("config_dir", root.PersistentFlags().Lookup("config-dir"))
	_ = viper.BindPFlag("hub", root.PersistentFlags().Lookup("hub"))

	root.AddCommand(newDescribeCommand())
	root.AddCommand(newCallCommand())
	root.AddCommand(newWatchConfigCommand())

	return root
}

func defaultConfigDir() string {
	if dir := viper.GetString("path"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/vbus"
}
