package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scribed/internal/config"
	"scribed/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue maintenance operations",
	}

	queueCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show aggregate queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:      %d\n", summary.Total)
				fmt.Fprintf(out, "Pending:    %d\n", summary.Pending)
				fmt.Fprintf(out, "Processing: %d\n", summary.Processing)
				fmt.Fprintf(out, "Completed:  %d\n", summary.Completed)
				fmt.Fprintf(out, "Failed:     %d\n", summary.Failed)
				fmt.Fprintf(out, "Cancelled:  %d\n", summary.Cancelled)
				return nil
			})
		},
	})

	queueCmd.AddCommand(&cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a single job and its chunk records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("job #%d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job #%d\n", id)
				return nil
			})
		},
	})

	var clearAll bool
	var clearFailed bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear completed jobs (or failed/all with flags)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var (
					count int64
					err   error
					label string
				)
				switch {
				case clearAll:
					count, err = store.Clear(cmd.Context())
					label = "job(s)"
				case clearFailed:
					count, err = store.ClearFailed(cmd.Context())
					label = "failed job(s)"
				default:
					count, err = store.ClearCompleted(cmd.Context())
					label = "completed job(s)"
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", count, label)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "Remove every job regardless of status")
	clearCmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed jobs only")
	queueCmd.AddCommand(clearCmd)

	return queueCmd
}
