package cli

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/vbus-go/vbus/internal/configstore"
)

// newWatchConfigCommand watches <id>.conf for changes and prints each
// one. Useful when an external process manages this module's
// credentials (the v2 config shape) and rotates them on disk: the
// atomic rename configstore.Save performs surfaces here as a CREATE
// immediately followed by a RENAME on most filesystems.
func newWatchConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch-config",
		Short: "Watch this module's config file for external changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configstore.Path(flags.configDir, flags.id)
			dir := filepath.Dir(path)

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s\n", path)
			ctx := cmd.Context()
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != filepath.Clean(path) {
						continue
					}
					fmt.Fprintf(out, "%s: %s\n", event.Op, event.Name)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
				}
			}
		},
	}
}
