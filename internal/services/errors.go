package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify every failure the pipeline can surface.
// Components wrap concrete causes with one of these markers so the
// workflow manager and retry policy can act without string matching.
var (
	// Wiring and argument problems. Never retried.
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")

	// Input validation failures. Never retried.
	ErrUnsupportedMedia = errors.New("unsupported media")
	ErrMediaTooLong     = errors.New("media too long")
	ErrMediaEmpty       = errors.New("media empty")

	// Local resource pressure. Not retried at this layer; surfaced to
	// the caller as a retry-later signal.
	ErrResourceExhausted = errors.New("resource exhausted")

	// Object storage.
	ErrStorageTransient = errors.New("storage transient")
	ErrStorageFatal     = errors.New("storage fatal")

	// Transcription provider.
	ErrTranscriptionTransient = errors.New("transcription transient")
	ErrTranscriptionFatal     = errors.New("transcription fatal")
)

// Wrap builds an error that includes stage context while tagging it
// with the provided classification marker.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStorageTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageTransient) || errors.Is(err, ErrTranscriptionTransient)
}

// Kind returns the stable name of the error's classification for
// status reporting. Unclassified errors report as "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnsupportedMedia):
		return "unsupported_media"
	case errors.Is(err, ErrMediaTooLong):
		return "media_too_long"
	case errors.Is(err, ErrMediaEmpty):
		return "media_empty"
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, ErrStorageTransient):
		return "storage_transient"
	case errors.Is(err, ErrStorageFatal):
		return "storage_fatal"
	case errors.Is(err, ErrTranscriptionTransient):
		return "transcription_transient"
	case errors.Is(err, ErrTranscriptionFatal):
		return "transcription_fatal"
	case err == nil:
		return ""
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
