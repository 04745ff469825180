package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbus-go/vbus/internal/wireutil"
)

func newCallCommand() *cobra.Command {
	var targetID, targetHost string

	cmd := &cobra.Command{
		Use:   "call <method-path> [args...]",
		Short: "Invoke a remote method and print its reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout+time.Second)
			defer cancel()

			client, err := connect(ctx)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer client.Close()

			callArgs := make([]any, len(args)-1)
			for i, raw := range args[1:] {
				var v any
				if err := json.Unmarshal([]byte(raw), &v); err != nil {
					v = raw
				}
				callArgs[i] = v
			}

			root := client.Remote(targetID, targetHost)
			method, err := root.GetMethod(ctx, flags.timeout, wireutil.SplitPath(args[0])...)
			if err != nil {
				return fmt.Errorf("resolve method %s: %w", args[0], err)
			}

			reply, err := method.Call(ctx, flags.timeout, callArgs...)
			if err != nil {
				return fmt.Errorf("call %s: %w", args[0], err)
			}
			return printResult(reply)
		},
	}

	cmd.Flags().StringVar(&targetID, "target-id", "", "remote module id (required)")
	cmd.Flags().StringVar(&targetHost, "target-host", "", "remote module host (required)")
	_ = cmd.MarkFlagRequired("target-id")
	_ = cmd.MarkFlagRequired("target-host")

	return cmd
}
