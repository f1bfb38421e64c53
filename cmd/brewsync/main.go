// brewsync is an offline-first command line client for the coffee
// recipe backend. Mutations made while offline are queued locally and
// replayed when connectivity returns.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brewlog/brewsync/internal/logging"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "brewsync",
		Short:         "Offline-first coffee recipe client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelWarn
			if flagVerbose {
				level = logging.LevelDebug
			}
			logging.Init(os.Stderr, level)
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default ~/.brewsync/config.toml)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newListCmd(),
		newAddCmd(),
		newEditCmd(),
		newDeleteCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newUploadCmd(),
		newFilesCmd(),
		newConfigCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
