package workflow

import (
	"log/slog"

	"scribed/internal/chunking"
	"scribed/internal/config"
	"scribed/internal/ingest"
	"scribed/internal/media"
	"scribed/internal/queue"
	"scribed/internal/scratch"
	"scribed/internal/stage"
	"scribed/internal/storage"
	"scribed/internal/transcribe"
	"scribed/internal/upload"
)

// PipelineStage binds a stage handler to the queue statuses it moves a
// job between.
type PipelineStage struct {
	Name       string
	Processing queue.Status
	Done       queue.Status
	Handler    stage.Handler
}

// loggerAware lets the manager route stage logs into the job-scoped
// logger before each execution.
type loggerAware interface {
	SetLogger(*slog.Logger)
}

// DefaultStages wires the full transcription pipeline in execution
// order.
func DefaultStages(
	cfg *config.Config,
	store *queue.Store,
	scratchMgr *scratch.Manager,
	gateway *storage.Gateway,
	provider transcribe.Provider,
	logger *slog.Logger,
) []PipelineStage {
	return []PipelineStage{
		{
			Name:       "staging",
			Processing: queue.StatusStaging,
			Done:       queue.StatusStaged,
			Handler:    ingest.NewStage(cfg, store, scratchMgr, gateway, logger),
		},
		{
			Name:       "extracting",
			Processing: queue.StatusExtracting,
			Done:       queue.StatusExtracted,
			Handler:    media.NewStage(cfg, store, logger),
		},
		{
			Name:       "chunking",
			Processing: queue.StatusChunking,
			Done:       queue.StatusChunked,
			Handler:    chunking.NewStage(cfg, store, logger),
		},
		{
			Name:       "uploading",
			Processing: queue.StatusUploading,
			Done:       queue.StatusUploaded,
			Handler:    upload.NewStage(cfg, store, gateway, logger),
		},
		{
			Name:       "transcribing",
			Processing: queue.StatusTranscribing,
			Done:       queue.StatusCompleted,
			Handler:    transcribe.NewStage(cfg, store, provider, gateway, logger),
		},
	}
}
