// Command vbus-explorer is a bus-side diagnostic tool: it connects as
// an ordinary module and lets an operator describe a remote tree, call
// a remote method, or watch a config file for external credential
// updates. Grounded on the teacher's cmd/bd cobra+viper root command
// layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/vbus-go/vbus/cmd/vbus-explorer/internal/cli"
)

func main() {
	viper.SetEnvPrefix("vbus")
	viper.AutomaticEnv()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
