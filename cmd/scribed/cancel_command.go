package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scribed/internal/config"
	"scribed/internal/queue"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a queued or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				applied, err := store.RequestCancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !applied {
					return fmt.Errorf("job #%d not found or already finished", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job #%d\n", id)
				return nil
			})
		},
	}
}
