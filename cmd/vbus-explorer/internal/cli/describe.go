package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDescribeCommand() *cobra.Command {
	var window time.Duration
	var maxLevel int
	var hasMaxLevel bool

	cmd := &cobra.Command{
		Use:   "describe <domain> <app>",
		Short: "Broadcast a describe request and print the merged tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), window+flags.timeout)
			defer cancel()

			client, err := connect(ctx)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer client.Close()

			var level *int
			if hasMaxLevel {
				level = &maxLevel
			}
			node, err := client.Discover(args[0], args[1], window, level)
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			return printResult(node.Items())
		},
	}

	cmd.Flags().DurationVar(&window, "window", time.Second, "reply collection window")
	cmd.Flags().IntVar(&maxLevel, "max-level", 0, "depth limit for the returned tree")
	cmd.Flags().BoolVar(&hasMaxLevel, "limit-depth", false, "apply --max-level instead of an unlimited describe")

	return cmd
}
