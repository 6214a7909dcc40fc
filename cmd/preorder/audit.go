package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/example/preorder/pkg/repository"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type auditOptions struct {
	Action string
	Limit  int64
}

// NewAuditCommand lists recent audit entries from MongoDB.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &auditOptions{}

	cmd := &cobra.Command{
		Use:          "audit",
		Short:        "List recent intake and admin actions",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "only show this action (submit_order|delete_order|clear_orders)")
	cmd.Flags().Int64VarP(&opts.Limit, "limit", "n", 20, "maximum number of entries")

	return cmd
}

func runAudit(rootOpts *RootOptions, opts *auditOptions, out io.Writer) error {
	cfg, log, err := loadTool(rootOpts)
	if err != nil {
		return err
	}
	defer log.Sync()

	if !cfg.MongoDB.Enabled() {
		return errors.New("mongodb.uri is not configured")
	}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer mongoRepo.Close(ctx)

	logs, err := mongoRepo.GetAuditLogs(ctx, opts.Action, opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	return writeAuditTable(out, logs)
}

func writeAuditTable(w io.Writer, logs []*repository.AuditLog) error {
	table := tablewriter.NewWriter(w)
	table.Header("Time", "Action", "Entity", "Data")
	for _, l := range logs {
		err := table.Append(
			l.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			l.Action,
			l.EntityID,
			fmt.Sprint(l.Data),
		)
		if err != nil {
			return err
		}
	}
	return table.Render()
}
