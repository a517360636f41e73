package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"meshinv/internal/adapter"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass against UISP or a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var source adapter.Adapter
			if file != "" {
				source = adapter.NewFileAdapter(file)
			} else {
				if !a.cfg.UISP.Enabled {
					return fmt.Errorf("uisp is not enabled; pass --file to reconcile a snapshot")
				}
				uisp, err := newUISPAdapter(a.cfg, a.logger)
				if err != nil {
					return err
				}
				source = uisp
			}

			ctx := cmd.Context()
			if err := source.Start(ctx); err != nil {
				return fmt.Errorf("failed to start %s adapter: %w", source.Name(), err)
			}
			defer func() { _ = source.Stop() }()

			snapshot, err := source.Fetch(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch from %s: %w", source.Name(), err)
			}
			if len(snapshot.Devices) == 0 {
				return fmt.Errorf("%s returned no devices; refusing to reconcile an empty snapshot", source.Name())
			}

			result, err := a.reconciler.Run(ctx, snapshot)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file (json or yaml) instead of fetching from UISP")
	return cmd
}
