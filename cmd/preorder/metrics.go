package main

import (
	"github.com/example/preorder/pkg/export"
	"github.com/example/preorder/pkg/metrics"
	"github.com/example/preorder/pkg/repository"
	"github.com/spf13/cobra"
)

// NewMetricsCommand prints the per-user summary table for the configured store.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "metrics",
		Short:        "Print per-user order summaries",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadTool(rootOpts)
			if err != nil {
				return err
			}
			defer log.Sync()

			list, err := repository.NewFileStore(cfg.Store.Path, log).Load()
			if err != nil {
				return err
			}
			return export.WriteSummaryTable(cmd.OutOrStdout(), metrics.Aggregate(list))
		},
	}
}
