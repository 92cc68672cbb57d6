package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run
// with. It collects every problem rather than stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		problems = append(problems, "paths.scratch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if c.Scratch.DiskFloorMB < 0 {
		problems = append(problems, "scratch.disk_floor_mb must not be negative")
	}
	if c.Media.SampleRate <= 0 {
		problems = append(problems, "media.sample_rate must be positive")
	}
	if c.Media.MaxDurationSeconds <= 0 {
		problems = append(problems, "media.max_duration_seconds must be positive")
	}
	if c.Media.MinDurationSeconds < 0 {
		problems = append(problems, "media.min_duration_seconds must not be negative")
	}
	if c.Media.MinDurationSeconds >= c.Media.MaxDurationSeconds {
		problems = append(problems, "media.min_duration_seconds must be below media.max_duration_seconds")
	}
	if c.Chunking.MaxChunkDurationSeconds <= 0 {
		problems = append(problems, "chunking.max_chunk_duration_seconds must be positive")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		problems = append(problems, "storage.bucket must be set")
	}
	if strings.TrimSpace(c.Storage.Endpoint) == "" {
		problems = append(problems, "storage.endpoint must be set")
	}
	if c.Storage.RetryLimit < 1 {
		problems = append(problems, "storage.retry_limit must be at least 1")
	}
	if c.Storage.UploadConcurrency < 1 {
		problems = append(problems, "storage.upload_concurrency must be at least 1")
	}
	if c.Transcription.Concurrency < 1 {
		problems = append(problems, "transcription.concurrency must be at least 1")
	}
	if c.Transcription.RetryLimit < 1 {
		problems = append(problems, "transcription.retry_limit must be at least 1")
	}
	if c.Workflow.JobConcurrency < 1 {
		problems = append(problems, "workflow.job_concurrency must be at least 1")
	}
	if c.Workflow.QueuePollInterval < 1 {
		problems = append(problems, "workflow.queue_poll_interval must be at least 1")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
