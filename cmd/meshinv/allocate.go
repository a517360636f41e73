package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newAllocateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "allocate <install-id>",
		Short: "Assign a network number to an install",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.allocator.Allocate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
