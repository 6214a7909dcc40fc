package main

import (
	"fmt"
	"io"
	"os"

	"github.com/example/preorder/pkg/export"
	"github.com/example/preorder/pkg/models"
	"github.com/example/preorder/pkg/repository"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	Format string
	Out    string
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:          "export",
		Short:        "Export all orders as CSV or XLSX",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "csv", "output format (csv|xlsx)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (stdout when empty, csv only)")

	return cmd
}

func runExport(rootOpts *RootOptions, opts *exportOptions, stdout io.Writer) error {
	var write func(io.Writer, []models.Order) error
	switch opts.Format {
	case "csv":
		write = export.WriteCSV
	case "xlsx":
		if opts.Out == "" {
			return fmt.Errorf("xlsx export needs --out")
		}
		write = export.WriteXLSX
	default:
		return fmt.Errorf("invalid format %q: must be csv or xlsx", opts.Format)
	}

	cfg, log, err := loadTool(rootOpts)
	if err != nil {
		return err
	}
	defer log.Sync()

	list, err := repository.NewFileStore(cfg.Store.Path, log).Load()
	if err != nil {
		return err
	}

	if opts.Out == "" {
		return write(stdout, list)
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.Out, err)
	}
	if err := write(f, list); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
