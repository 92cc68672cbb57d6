package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"scribed/internal/config"
	"scribed/internal/daemon"
	"scribed/internal/logging"
	"scribed/internal/notifications"
	"scribed/internal/queue"
	"scribed/internal/retry"
	"scribed/internal/scratch"
	"scribed/internal/storage"
	"scribed/internal/transcribe"
	"scribed/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the transcription pipeline daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Credentials may live in a .env next to the working
			// directory; absence is not an error.
			_ = godotenv.Load()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			logger, err := logging.NewDaemonLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			d, err := buildDaemon(cfg, store, logger)
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			<-signalCtx.Done()
			d.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

// buildDaemon assembles the full pipeline: scratch manager, object
// storage gateway, transcription provider, stage sequence, workflow
// manager, and the daemon lifecycle around them.
func buildDaemon(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	scratchMgr := scratch.NewManager(cfg.Paths.ScratchDir, cfg.Scratch.DiskFloorMB*1024*1024)

	objectStore, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	gateway := storage.NewGateway(objectStore, retry.Policy{
		MaxAttempts: cfg.Storage.RetryLimit,
		BaseDelay:   time.Duration(cfg.Storage.RetryDelayMS) * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}, logger)

	provider := transcribe.NewDeepgramClient(cfg.Transcription)
	notifier := notifications.NewService(cfg)

	stages := workflow.DefaultStages(cfg, store, scratchMgr, gateway, provider, logger)
	manager := workflow.NewManager(cfg, store, logger, notifier, scratchMgr, gateway, stages)

	return daemon.New(cfg, store, logger, manager, scratchMgr)
}
