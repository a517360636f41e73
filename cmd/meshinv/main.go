// Command meshinv keeps the mesh network inventory in step with UISP and
// hands out network numbers to new installs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "meshinv",
		Short:         "Mesh network inventory reconciler and network number allocator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default: search MESHINV_CONFIG, ./meshinv.yaml, user config dir)")

	cmd.AddCommand(
		newServeCmd(&opts),
		newMigrateCmd(&opts),
		newAllocateCmd(&opts),
		newReconcileCmd(&opts),
	)
	return cmd
}
