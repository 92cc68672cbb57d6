package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribed/internal/config"
	"scribed/internal/ingest"
	"scribed/internal/notifications"
	"scribed/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var jobKey string
	var contentType string

	cmd := &cobra.Command{
		Use:   "submit <path>",
		Short: "Queue a media file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if absPath, err = filepath.Abs(absPath); err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}
			if !ingest.SupportedExtension(info.Name()) {
				return fmt.Errorf("unsupported file extension %q", filepath.Ext(info.Name()))
			}

			resolvedType := strings.TrimSpace(contentType)
			if resolvedType == "" {
				resolvedType = mime.TypeByExtension(strings.ToLower(filepath.Ext(info.Name())))
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := store.NewJob(cmd.Context(), strings.TrimSpace(jobKey), absPath, resolvedType)
				if err != nil {
					if errors.Is(err, queue.ErrJobAlreadyActive) {
						return fmt.Errorf("a job with key %q is already queued or processing", jobKey)
					}
					return err
				}
				if err := notifications.NewService(cfg).NotifyJobAccepted(cmd.Context(), filepath.Base(absPath), job.JobKey); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: acceptance notification failed: %v\n", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job #%d (%s) as %s\n", job.ID, filepath.Base(absPath), job.JobKey)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&jobKey, "key", "", "Explicit job key (defaults to a generated UUID)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type of the upload (defaults to a guess from the extension)")
	return cmd
}
