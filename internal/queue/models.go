package queue

import (
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusStaging      Status = "staging"
	StatusStaged       Status = "staged"
	StatusExtracting   Status = "extracting"
	StatusExtracted    Status = "extracted"
	StatusChunking     Status = "chunking"
	StatusChunked      Status = "chunked"
	StatusUploading    Status = "uploading"
	StatusUploaded     Status = "uploaded"
	StatusTranscribing Status = "transcribing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// DaemonStopReason is the error message set when in-flight jobs are
// failed because the daemon stopped underneath them.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusStaging,
	StatusStaged,
	StatusExtracting,
	StatusExtracted,
	StatusChunking,
	StatusChunked,
	StatusUploading,
	StatusUploaded,
	StatusTranscribing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusStaging:      {},
	StatusExtracting:   {},
	StatusChunking:     {},
	StatusUploading:    {},
	StatusTranscribing: {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// ChunkState tracks the transcription progress of a single chunk.
type ChunkState string

const (
	ChunkPending   ChunkState = "pending"
	ChunkSubmitted ChunkState = "submitted"
	ChunkSucceeded ChunkState = "succeeded"
	ChunkFailed    ChunkState = "failed"
)

// Job represents one end-to-end transcription request.
type Job struct {
	ID              int64
	JobKey          string
	SourcePath      string
	SourceFilename  string
	ContentType     string
	Status          Status
	ErrorKind       string
	ErrorMessage    string
	ScratchDir      string
	AudioPath       string
	DurationSeconds float64
	Transcript      string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// Chunk is a bounded-duration slice of a job's normalized audio.
type Chunk struct {
	ID           int64
	JobID        int64
	SeqIndex     int
	StartSeconds float64
	EndSeconds   float64
	StorageKey   string
	State        ChunkState
	Transcript   string
	RetryCount   int
	ErrorMessage string
}

// DurationSeconds returns the chunk's duration.
func (c Chunk) DurationSeconds() float64 {
	return c.EndSeconds - c.StartSeconds
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsTerminal returns true when the job has finished for good.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether a status is terminal.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// ProcessingStatuses returns the statuses that hold heartbeats.
func ProcessingStatuses() []Status {
	out := make([]Status, 0, len(processingStatuses))
	for _, status := range allStatuses {
		if _, ok := processingStatuses[status]; ok {
			out = append(out, status)
		}
	}
	return out
}

// StagedSourcePath returns the scratch-local copy of the upload, or ""
// when the job has not been staged yet.
func (j Job) StagedSourcePath() string {
	if j.ScratchDir == "" || j.SourceFilename == "" {
		return ""
	}
	return filepath.Join(j.ScratchDir, j.SourceFilename)
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given error kind and message.
func (j *Job) SetFailed(kind, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ProgressStage = "Failed"
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.LastHeartbeat = nil
}

// SetCancelled marks the job as cancelled.
func (j *Job) SetCancelled() {
	j.Status = StatusCancelled
	j.ProgressStage = "Cancelled"
	j.ProgressMessage = "Cancelled by user"
	j.ProgressPercent = 0
	j.LastHeartbeat = nil
}

// StageLabel returns a human-readable label for a status.
func StageLabel(status Status) string {
	if status == "" {
		return ""
	}
	s := string(status)
	return strings.ToUpper(s[:1]) + s[1:]
}
