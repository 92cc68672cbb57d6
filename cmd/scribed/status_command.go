package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"scribed/internal/config"
	"scribed/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queued and processing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []queue.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				for _, raw := range strings.Split(trimmed, ",") {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				headers := []string{"ID", "KEY", "FILE", "STATUS", "PROGRESS", "DETAIL"}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					detail := job.ProgressMessage
					if job.Status == queue.StatusFailed {
						detail = fmt.Sprintf("[%s] %s", job.ErrorKind, job.ErrorMessage)
					}
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						shortKey(job.JobKey),
						job.SourceFilename,
						string(job.Status),
						fmt.Sprintf("%3.0f%%", job.ProgressPercent),
						truncate(detail, 60),
					})
				}

				if isatty.IsTerminal(os.Stdout.Fd()) {
					fmt.Fprintln(out, renderTable(headers, rows, 1, 5))
					return nil
				}
				for _, row := range rows {
					fmt.Fprintln(out, strings.Join(row, "\t"))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show jobs in the given statuses (comma-separated)")
	return cmd
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
