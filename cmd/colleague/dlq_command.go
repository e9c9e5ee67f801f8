package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
)

var deadLetterColumns = []column{
	{title: "ID"},
	{title: "Queue"},
	{title: "Name"},
	{title: "Failed At"},
	{title: "Attempts", right: true},
	{title: "Manual", right: true},
	{title: "Retry"},
	{title: "Reason", maxWidth: 60},
}

func deadLetterRows(items []queue.DeadLetter) [][]string {
	rows := make([][]string, 0, len(items))
	for _, dl := range items {
		retry := "no"
		if dl.CanRetry {
			retry = "yes"
		}
		rows = append(rows, []string{
			dl.ID,
			dl.Queue,
			dl.Name,
			dl.FailedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(dl.RetryCount),
			strconv.Itoa(dl.ManualRetries),
			retry,
			dl.FailedReason,
		})
	}
	return rows
}

func newDLQCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and act on dead-lettered jobs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				items, err := a.jobs.DeadLetters(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Dead-letter queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(deadLetterColumns, deadLetterRows(items)))
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show")

	retry := &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-queue a dead-lettered job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				job, err := a.jobs.RetryDeadLetter(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-queued %s on %s\n", job.ID, job.Queue)
				return nil
			})
		},
	}

	discard := &cobra.Command{
		Use:   "discard <id>",
		Short: "Drop a dead-lettered job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				if err := a.jobs.DiscardDeadLetter(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, retry, discard)
	return cmd
}
